package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"bisub/internal/config"
	"bisub/internal/daemon"
	"bisub/internal/preflight"
	"bisub/internal/queue"
)

// Severities used in status output.
const (
	SeverityInfo  = "info"
	SeverityOK    = "ok"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// StatusLine is one labelled row of the status report.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// DependencyStatus is one external binary as shown by `bisub status`.
type DependencyStatus struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
	Severity    string
}

// DependencySummary totals dependency availability.
type DependencySummary struct {
	Total           int
	Available       int
	MissingRequired int
	MissingOptional int
	Severity        string
	Detail          string
}

// Snapshot is the full report behind `bisub status`.
type Snapshot struct {
	Running           bool
	PID               int
	LockPath          string
	QueueDBPath       string
	QueueStats        map[string]int
	SystemChecks      []StatusLine
	Directories       []StatusLine
	Dependencies      []DependencyStatus
	DependencySummary DependencySummary
}

// BuildStatusSnapshot assembles the status report without the daemon's
// help: the lock tells whether it runs, and queue counts come straight from
// the database. A missing database reports an empty queue.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (Snapshot, error) {
	if cfg == nil {
		return Snapshot{}, errors.New("configuration not available")
	}
	probe, err := daemon.Probe(cfg)
	if err != nil {
		return Snapshot{}, err
	}
	deps := ResolveDependencies(ctx, cfg)
	return Snapshot{
		Running:           probe.Running,
		PID:               probe.PID,
		LockPath:          probe.LockPath,
		QueueDBPath:       cfg.QueueDBPath(),
		QueueStats:        queueCounts(ctx, cfg),
		SystemChecks:      BuildSystemChecks(cfg, probe),
		Directories:       BuildDirectoryChecks(cfg),
		Dependencies:      deps,
		DependencySummary: BuildDependencySummary(deps),
	}, nil
}

func queueCounts(ctx context.Context, cfg *config.Config) map[string]int {
	counts := map[string]int{}
	if _, err := os.Stat(cfg.QueueDBPath()); err != nil {
		return counts
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return counts
	}
	defer store.Close()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	stats, err := store.Stats(ctx)
	if err != nil {
		return counts
	}
	for status, n := range stats {
		counts[string(status)] = n
	}
	return counts
}

func availability(available, optional bool) string {
	switch {
	case available:
		return SeverityOK
	case optional:
		return SeverityWarn
	default:
		return SeverityError
	}
}

// ResolveDependencies checks every external binary for status output.
func ResolveDependencies(ctx context.Context, cfg *config.Config) []DependencyStatus {
	if cfg == nil {
		return nil
	}
	checks := preflight.CheckSystemDeps(ctx, cfg)
	out := make([]DependencyStatus, len(checks))
	for i, c := range checks {
		out[i] = DependencyStatus{
			Name:        c.Name,
			Command:     c.Command,
			Description: c.Description,
			Optional:    c.Optional,
			Available:   c.Available,
			Detail:      c.Detail,
			Severity:    availability(c.Available, c.Optional),
		}
	}
	return out
}

// BuildSystemChecks reports whether the daemon runs and whether translation
// credentials are set.
func BuildSystemChecks(cfg *config.Config, probe daemon.ProbeResult) []StatusLine {
	daemonLine := StatusLine{Label: "bisub daemon", Severity: SeverityWarn, Detail: "Not running (run `bisub daemon start`)"}
	if probe.Running {
		daemonLine.Severity, daemonLine.Detail = SeverityOK, "Running"
		if probe.PID > 0 {
			daemonLine.Detail = fmt.Sprintf("Running (pid %d)", probe.PID)
		}
	}
	credsLine := StatusLine{Label: "Translation", Severity: SeverityOK, Detail: "Credentials configured"}
	if creds := preflight.CheckTranslationCredentials(cfg.Translation); !creds.Passed {
		credsLine.Severity, credsLine.Detail = SeverityWarn, creds.Detail
	}
	return []StatusLine{daemonLine, credsLine}
}

// BuildDirectoryChecks reports whether each configured directory is usable.
func BuildDirectoryChecks(cfg *config.Config) []StatusLine {
	dirs := [...][2]string{
		{"Staging", cfg.Paths.StagingDir},
		{"Output", cfg.Paths.OutputDir},
		{"Logs", cfg.Paths.LogDir},
	}
	lines := make([]StatusLine, len(dirs))
	for i, dir := range dirs {
		result := preflight.CheckDirectoryAccess(dir[0], dir[1])
		lines[i] = StatusLine{Label: dir[0], Severity: availability(result.Passed, false), Detail: result.Detail}
	}
	return lines
}

// BuildDependencySummary totals deps into one status line.
func BuildDependencySummary(deps []DependencyStatus) DependencySummary {
	if len(deps) == 0 {
		return DependencySummary{Severity: SeverityInfo, Detail: "No dependency checks configured"}
	}
	sum := DependencySummary{Total: len(deps)}
	for _, dep := range deps {
		switch {
		case dep.Available:
			sum.Available++
		case dep.Optional:
			sum.MissingOptional++
		default:
			sum.MissingRequired++
		}
	}
	sum.Detail = fmt.Sprintf("%d/%d available", sum.Available, sum.Total)
	switch {
	case sum.MissingRequired > 0:
		sum.Severity = SeverityError
	case sum.MissingOptional > 0:
		sum.Severity = SeverityWarn
	default:
		sum.Severity = SeverityOK
		return sum
	}
	sum.Detail += fmt.Sprintf(" (missing: %d required, %d optional)", sum.MissingRequired, sum.MissingOptional)
	return sum
}
