package preflight

import (
	"context"

	"bisub/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Advisory results never block processing.
	Advisory bool
}

// Blocking reports whether the result should stop job processing.
func (r Result) Blocking() bool {
	return !r.Passed && !r.Advisory
}

// RunAll executes the local preflight checks for the given config. It does
// not contact the translation endpoint.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Advisory: status.Optional}
		if status.Available {
			result.Detail = status.Command
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	results = append(results, CheckTranslationCredentials(cfg.Translation))
	return results
}

// Blocking returns the results that should stop processing.
func Blocking(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Blocking() {
			out = append(out, r)
		}
	}
	return out
}
