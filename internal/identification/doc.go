// Package identification turns a staged file into one canonical format per
// engine.
//
// Engine is the single capability every backend implements (sniff, signature,
// fido). Orchestrator fans a staged payload out to all configured engines
// concurrently and isolates their failures. Reconcile collapses an engine's
// ordered candidate list into a CanonicalFormat.
package identification
