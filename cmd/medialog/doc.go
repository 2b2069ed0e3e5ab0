// Package main hosts the medialog CLI entrypoint and command graph.
//
// "scan" walks a case database or extracted directory, stages and verifies
// every file, runs the configured identification engines and records the
// outcome in the results database. "results" reads stored runs back, "check"
// runs engine preflight, "staging" inspects and sweeps leftover run
// directories and "config" scaffolds configuration.
//
// Keep this package lean: new behaviour belongs in the internal packages and
// is surfaced here through commands or flags.
package main
