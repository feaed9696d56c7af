// Package newsletter assembles the final markdown issue from a completed
// analysis result and persists it under the configured output directory.
package newsletter
