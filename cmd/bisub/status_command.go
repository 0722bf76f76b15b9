package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bisub/internal/daemonctl"
	"bisub/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snap)
			}
			renderSnapshot(cmd, snap)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func renderSnapshot(cmd *cobra.Command, snap daemonctl.Snapshot) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	writeSection(out, "System", colorize)
	for _, line := range snap.SystemChecks {
		fmt.Fprintln(out, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
	}
	fmt.Fprintln(out)

	writeSection(out, "Dependencies", colorize)
	summary := snap.DependencySummary
	fmt.Fprintln(out, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	for _, dep := range snap.Dependencies {
		detail := dep.Command
		if !dep.Available && dep.Detail != "" {
			detail = dep.Detail
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, statusKindFromSeverity(dep.Severity), detail, colorize))
	}
	fmt.Fprintln(out)

	writeSection(out, "Directories", colorize)
	for _, line := range snap.Directories {
		fmt.Fprintln(out, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
	}
	fmt.Fprintln(out)

	writeSection(out, "Queue", colorize)
	if len(snap.QueueStats) == 0 {
		fmt.Fprintln(out, "  Queue is empty")
		return
	}
	rows := make([][]string, 0, len(snap.QueueStats))
	for _, status := range queue.AllStatuses() {
		count, ok := snap.QueueStats[string(status)]
		if !ok {
			continue
		}
		rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}))
}
