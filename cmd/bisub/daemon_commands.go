package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bisub/internal/daemonctl"
	"bisub/internal/daemonrun"
)

const (
	daemonStartTimeout = 10 * time.Second
	daemonStopGrace    = 5 * time.Second
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control the background worker process",
	}

	var logLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bisub daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(ctx.configValue(), exe, launchOptions(ctx, logLevel), daemonStartTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&logLevel, "log-level", "", "Override the daemon log level")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the bisub daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopDaemon(cmd, ctx)
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the bisub daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := stopDaemon(cmd, ctx); err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(ctx.configValue(), exe, launchOptions(ctx, restartLogLevel), daemonStartTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon restarted (pid %d)\n", result.PID)
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Override the daemon log level")

	var runLogLevel string
	var development bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    runLogLevel,
				Development: development,
			})
		},
	}
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "Override the log level")
	runCmd.Flags().BoolVar(&development, "dev", false, "Use development logging")

	statusCmd := newStatusCommand(ctx)
	statusCmd.Short = "Show daemon status (same as bisub status)"

	cmd.AddCommand(startCmd, stopCmd, restartCmd, runCmd, statusCmd)
	return cmd
}

func stopDaemon(cmd *cobra.Command, ctx *commandContext) error {
	out := cmd.OutOrStdout()
	result, err := daemonctl.StopAndTerminate(ctx.configValue(), daemonStopGrace)
	if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	if result.ForcedKill {
		fmt.Fprintf(out, "Daemon did not exit in %s; killed pid %d\n", daemonStopGrace, result.PID)
	}
	fmt.Fprintln(out, "Daemon stopped")
	return nil
}

func launchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   logLevel,
	}
}
