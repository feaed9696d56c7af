// Package config loads, normalizes, and validates Lettercast configuration
// from TOML with environment overrides for secrets.
//
// Defaults live in defaults.go; normalization expands paths and fills gaps;
// validation rejects unusable values before any stage runs. The pipeline
// never reads configuration globally: values are passed into components at
// construction.
package config
