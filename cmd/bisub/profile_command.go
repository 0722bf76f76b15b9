package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bisub/internal/profiler"
)

func newProfileCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the resolved device, model, and limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			profile, err := profiler.Resolve(cmd.Context(), cfg, profiler.SystemProbe(cfg))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, profile)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			writeSection(out, "Environment", colorize)
			fmt.Fprintf(out, "  Device:     %s\n", profile.Device)
			if profile.Accelerator != nil {
				fmt.Fprintf(out, "  GPU:        %s (%d MB)\n", profile.Accelerator.Name, profile.Accelerator.MemoryMB)
			}
			fmt.Fprintf(out, "  Model:      %s (~%d MB)\n", profile.Model, profile.ModelMemoryMB)
			fmt.Fprintf(out, "  Max input:  %s\n", humanize.IBytes(uint64(profile.MaxInputBytes)))
			fmt.Fprintf(out, "  Locale:     %s\n", profile.Locale)
			fmt.Fprintln(out)

			writeSection(out, "Tools", colorize)
			for _, tool := range profile.Tools {
				kind := statusOK
				detail := tool.Command
				if !tool.Available {
					kind = statusError
					if tool.Optional {
						kind = statusWarn
					}
					detail = tool.Detail
				}
				fmt.Fprintln(out, renderStatusLine(tool.Name, kind, detail, colorize))
			}
			if len(profile.Notes) > 0 {
				fmt.Fprintln(out)
				writeSection(out, "Notes", colorize)
				for _, note := range profile.Notes {
					fmt.Fprintf(out, "  - %s\n", strings.TrimSpace(note))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
