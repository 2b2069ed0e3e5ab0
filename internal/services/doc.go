// Package services defines shared utilities consumed by the scan pipeline and
// the identification engines.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, image names, node paths, and engine
//     names for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent per-file statuses (identified, mismatch, extraction
//     failed) and keep engine-local failures distinguishable from node-level
//     ones.
//
// Use these helpers when wiring new pipeline or engine code so error handling
// and observability stay uniform.
package services
