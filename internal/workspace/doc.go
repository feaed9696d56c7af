// Package workspace manages the per-run temporary directory and the
// file lock that serializes runs against a shared scratch root.
package workspace
