// Package config loads, normalizes, and validates imagearchive configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// IMAGEARCHIVE_EXIFTOOL. The Config type centralizes the working directories
// (ingest, data, output, logs), catalog traversal knobs, the identifier
// backend, and the SQLite database location so the CLI resolves everything in
// one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
