package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{configFlag: new(string)}

	root := &cobra.Command{
		Use:           "bisub",
		Short:         "Bilingual subtitle pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(ctx.configFlag, "config", "c", "", "Configuration file path")

	for _, build := range []func(*commandContext) *cobra.Command{
		newSubmitCommand,
		newShowCommand,
		newStatusCommand,
		newQueueCommand,
		newDaemonCommand,
		newProfileCommand,
		newConfigCommand,
		newStagingCommand,
	} {
		root.AddCommand(build(ctx))
	}
	return root
}
