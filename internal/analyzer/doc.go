// Package analyzer owns the episode pipeline: it drives download,
// normalization, segment upload, the prompt sequence, and aggregation into a
// structured result, advancing through an explicit forward-only state
// machine with a timestamp per stage.
package analyzer
