// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that tag failures with
//     the originating stage and error kind.
//   - The transient/fatal split that retry loops consult before backing off.
//   - Context helpers that stamp run IDs and stage names for logging.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
