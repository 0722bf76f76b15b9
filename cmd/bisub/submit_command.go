package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"bisub/internal/daemon"
	"bisub/internal/queue"
	"bisub/internal/workflow"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		opts     workflow.JobOptions
		burnIn   bool
		noBurnIn bool
		wait     bool
		interval time.Duration
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "submit <video>...",
		Short: "Queue videos for bilingual subtitling",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if burnIn && noBurnIn {
				return errors.New("specify only one of --burn-in or --no-burn-in")
			}
			if burnIn || noBurnIn {
				value := burnIn
				opts.BurnIn = &value
			}
			return ctx.withManager(func(mgr *workflow.Manager, store *queue.Store) error {
				out := cmd.OutOrStdout()
				ids := make([]int64, 0, len(args))
				for _, input := range args {
					id, err := mgr.Submit(cmd.Context(), input, opts)
					if err != nil {
						return fmt.Errorf("submit %s: %w", input, err)
					}
					ids = append(ids, id)
					if !asJSON {
						fmt.Fprintf(out, "Queued job %d for %s\n", id, input)
					}
				}
				if !wait {
					if asJSON {
						return writeJSON(cmd, map[string]any{"job_ids": ids})
					}
					if probe, err := daemon.Probe(ctx.configValue()); err == nil && !probe.Running {
						fmt.Fprintln(out, "Daemon is not running; start it with `bisub daemon start` to process the queue")
					}
					return nil
				}

				statuses := make([]workflow.JobStatus, 0, len(ids))
				for _, id := range ids {
					st, err := waitForJob(cmd.Context(), mgr, id, interval, out, !asJSON)
					if err != nil {
						return err
					}
					statuses = append(statuses, st)
				}
				if asJSON {
					return writeJSON(cmd, statuses)
				}
				failed := 0
				for _, st := range statuses {
					printJobStatus(out, st)
					if st.Status == queue.StatusFailed {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d job(s) failed", failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "", "Subtitle mode: bilingual, source, or translated")
	cmd.Flags().BoolVar(&burnIn, "burn-in", false, "Burn subtitles into a copy of the video")
	cmd.Flags().BoolVar(&noBurnIn, "no-burn-in", false, "Only write the subtitle file")
	cmd.Flags().StringVar(&opts.SourceLanguage, "source", "", "Spoken language (auto to detect)")
	cmd.Flags().StringVar(&opts.TargetLanguage, "target", "", "Translation language")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Recognizer model size override")
	cmd.Flags().IntVar(&opts.Style.FontSize, "font-size", 0, "Burn-in font size")
	cmd.Flags().StringVar(&opts.Style.FontColor, "font-color", "", "Burn-in font color (name or #RRGGBB)")
	cmd.Flags().StringVar(&opts.Style.OutlineColor, "outline-color", "", "Burn-in outline color (name or #RRGGBB)")
	cmd.Flags().IntVar(&opts.Style.OutlineWidth, "outline-width", 0, "Burn-in outline width")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the jobs to finish")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval with --wait")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

// waitForJob polls until the job is terminal, printing progress changes.
func waitForJob(ctx context.Context, mgr *workflow.Manager, id int64, interval time.Duration, out io.Writer, verbose bool) (workflow.JobStatus, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := ""
	for {
		st, err := mgr.Poll(ctx, id)
		if err != nil {
			return workflow.JobStatus{}, err
		}
		if st.Terminal {
			return st, nil
		}
		line := fmt.Sprintf("job %d: %s %s %s", id, st.Stage, formatPercent(st.Progress), st.Message)
		if verbose && line != last {
			fmt.Fprintln(out, line)
			last = line
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}
