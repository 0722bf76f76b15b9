package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bisub/internal/logging"
	"bisub/internal/queue"
	"bisub/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staging",
		Short: "Inspect and clean per-job staging directories",
	}
	cmd.AddCommand(newStagingListCommand(ctx))
	cmd.AddCommand(newStagingCleanCommand(ctx))
	return cmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staging directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := staging.ListDirectories(cfg.Paths.StagingDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No staging directories")
				return nil
			}
			rows := make([][]string, 0, len(dirs))
			var total int64
			for _, dir := range dirs {
				total += dir.Size
				rows = append(rows, []string{
					fmt.Sprintf("%d", dir.JobID),
					dir.Name,
					humanize.IBytes(uint64(dir.Size)),
					humanize.Time(dir.ModTime),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Job", "Directory", "Size", "Modified"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "%d directories, %s total\n", len(dirs), humanize.IBytes(uint64(total)))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var (
		stale    time.Duration
		orphaned bool
	)
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale or orphaned staging directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stale <= 0 && !orphaned {
				return errors.New("specify --stale <age>, --orphaned, or both")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := logging.NewNop()
			var results []staging.CleanStaleResult
			if stale > 0 {
				results = append(results, staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, stale, logger))
			}
			if orphaned {
				err := ctx.withStore(func(store *queue.Store) error {
					active, err := activeJobIDs(cmd, store)
					if err != nil {
						return err
					}
					results = append(results, staging.CleanOrphaned(cmd.Context(), cfg.Paths.StagingDir, active, logger))
					return nil
				})
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			removed := 0
			var failures []staging.CleanupError
			for _, result := range results {
				removed += len(result.Removed)
				for _, path := range result.Removed {
					fmt.Fprintf(out, "Removed %s\n", path)
				}
				failures = append(failures, result.Errors...)
			}
			for _, failure := range failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to remove %s: %v\n", failure.Path, failure.Error)
			}
			fmt.Fprintf(out, "Removed %d staging director%s\n", removed, pluralSuffix(removed, "y", "ies"))
			if len(failures) > 0 {
				return fmt.Errorf("%d staging directories could not be removed", len(failures))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&stale, "stale", 0, "Remove directories untouched for longer than this age")
	cmd.Flags().BoolVar(&orphaned, "orphaned", false, "Remove directories no unfinished or resumable job holds")
	return cmd
}

// activeJobIDs returns the ids of jobs that may still use their staging
// directory.
func activeJobIDs(cmd *cobra.Command, store *queue.Store) (map[int64]struct{}, error) {
	jobs, err := store.List(cmd.Context())
	if err != nil {
		return nil, err
	}
	active := make(map[int64]struct{}, len(jobs))
	for _, job := range jobs {
		if job.HoldsStaging() {
			active[job.ID] = struct{}{}
		}
	}
	return active, nil
}

func pluralSuffix(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
