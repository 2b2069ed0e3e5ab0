// Package config loads, normalizes, and validates medialog configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MEDIALOG_FIDO_BINARY. The Config type centralizes every knob the scanner and
// CLI need so staging directories, the results database, and engine settings
// are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
