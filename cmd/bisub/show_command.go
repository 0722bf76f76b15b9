package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bisub/internal/queue"
	"bisub/internal/workflow"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job's stage, progress, and outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(func(mgr *workflow.Manager, _ *queue.Store) error {
				st, err := mgr.Poll(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, st)
				}
				printJobStatus(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func printJobStatus(out io.Writer, st workflow.JobStatus) {
	fmt.Fprintf(out, "Job %d: %s\n", st.ID, st.Status)
	fmt.Fprintf(out, "  Stage:     %s (%s)\n", st.Stage, formatPercent(st.Progress))
	if st.Message != "" {
		fmt.Fprintf(out, "  Message:   %s\n", st.Message)
	}
	if st.SubtitlePath != "" {
		fmt.Fprintf(out, "  Subtitles: %s\n", st.SubtitlePath)
	}
	if st.OutputPath != "" {
		fmt.Fprintf(out, "  Video:     %s\n", st.OutputPath)
	}
	if len(st.Warnings) > 0 {
		fmt.Fprintf(out, "  Warnings:  %d\n", len(st.Warnings))
		for _, w := range st.Warnings {
			fmt.Fprintf(out, "    #%d [%s] %s\n", w.SegmentIndex+1, w.Stage, w.Message)
		}
	}
	if st.Error != nil {
		fmt.Fprintf(out, "  Failed in: %s (%s)\n", st.Error.Stage, st.Error.Kind)
		fmt.Fprintf(out, "  Error:     %s\n", st.Error.Message)
		if st.Error.Resumable {
			fmt.Fprintf(out, "  Retry resumes from %s (bisub queue retry %d)\n", st.Error.ResumeFrom, st.ID)
		}
	}
}

func parseJobID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", value)
	}
	return id, nil
}
