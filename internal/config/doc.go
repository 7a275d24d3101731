// Package config loads, normalizes, and validates subalign configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment overrides such as SUBALIGN_BIND. Upload
// and output directories resolve against data_dir when they are relative, so
// one setting relocates all on-disk state.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
