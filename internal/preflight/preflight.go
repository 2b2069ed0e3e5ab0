package preflight

import (
	"context"

	"medialog/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional failures are reported but do not block a scan.
	Optional bool
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding engine is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Staging directory (always checked)
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckResultsLocation(cfg.Paths.ResultsDB))

	if cfg.Engines.Signature.Enabled {
		results = append(results, CheckSignatureDatabase(cfg.Engines.Signature.Path))
	}
	if cfg.Engines.Sniff.Enabled {
		results = append(results, Result{Name: "Content sniffer", Passed: true, Detail: "built in"})
	}
	if cfg.Engines.Fido.Enabled {
		results = append(results, CheckFido(ctx, cfg))
	}

	return results
}

// Blocking returns the failed checks that are not optional.
func Blocking(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
