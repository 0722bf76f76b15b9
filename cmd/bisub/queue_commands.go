package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bisub/internal/queue"
	"bisub/internal/workflow"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueRetryCommand(ctx))
	cmd.AddCommand(newQueueCancelCommand(ctx))
	cmd.AddCommand(newQueueRemoveCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	cmd.AddCommand(newQueueHealthCommand(ctx))
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var (
		statusFlags []string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(statusFlags))
			for _, value := range statusFlags {
				status, ok := queue.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(store *queue.Store) error {
				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if asJSON {
					views := make([]workflow.JobStatus, 0, len(jobs))
					for _, job := range jobs {
						views = append(views, workflow.StatusOf(job))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					st := workflow.StatusOf(job)
					rows = append(rows, []string{
						fmt.Sprintf("%d", job.ID),
						truncate(filepath.Base(job.InputPath), 40),
						string(job.Status),
						st.Stage,
						formatPercent(st.Progress),
						job.UpdatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Input", "Status", "Stage", "Progress", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Retry failed jobs from their resume point (all failed jobs when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withManager(func(mgr *workflow.Manager, _ *queue.Store) error {
				n, err := mgr.Retry(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if n == 0 {
					fmt.Fprintln(out, "No failed jobs to retry")
					return nil
				}
				fmt.Fprintf(out, "Retrying %d job(s)\n", n)
				return nil
			})
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a job; a running job stops after its current stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(func(mgr *workflow.Manager, store *queue.Store) error {
				if err := mgr.Cancel(cmd.Context(), id); err != nil {
					return err
				}
				job, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if job != nil && job.Status == queue.StatusFailed {
					fmt.Fprintf(out, "Job %d cancelled\n", id)
				} else {
					fmt.Fprintf(out, "Job %d will stop after its current stage\n", id)
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a finished job's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				job, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}
				if !queue.IsTerminal(job.Status) {
					return fmt.Errorf("job %d is %s; cancel it first", id, job.Status)
				}
				if _, err := store.Remove(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed job %d\n", id)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var completed, failed bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed and/or failed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !completed && !failed {
				return errors.New("specify --completed, --failed, or both")
			}
			return ctx.withStore(func(store *queue.Store) error {
				var removed int64
				if completed {
					n, err := store.ClearCompleted(cmd.Context())
					if err != nil {
						return err
					}
					removed += n
				}
				if failed {
					n, err := store.ClearFailed(cmd.Context())
					if err != nil {
						return err
					}
					removed += n
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "Remove completed jobs")
	cmd.Flags().BoolVar(&failed, "failed", false, "Remove failed jobs")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the queue database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				summary, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				db, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database:   %s\n", db.DBPath)
				fmt.Fprintf(out, "Schema:     v%d\n", db.SchemaVersion)
				fmt.Fprintf(out, "Integrity:  %s\n", yesNo(db.IntegrityCheck))
				if len(db.MissingColumns) > 0 {
					fmt.Fprintf(out, "Missing:    %s\n", strings.Join(db.MissingColumns, ", "))
				}
				if db.Error != "" {
					fmt.Fprintf(out, "Error:      %s\n", db.Error)
				}
				fmt.Fprintf(out, "Total:      %d\n", summary.Total)
				fmt.Fprintf(out, "Waiting:    %d\n", summary.Waiting)
				fmt.Fprintf(out, "Processing: %d\n", summary.Processing)
				fmt.Fprintf(out, "Failed:     %d\n", summary.Failed)
				fmt.Fprintf(out, "Completed:  %d\n", summary.Completed)
				return nil
			})
		},
	}
}

func parseJobIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseJobID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
