// Package daemonctl starts, stops, and reports on the bisub daemon from the
// CLI side. It talks to the daemon only through its lock file, pid file, and
// the shared queue database.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"bisub/internal/config"
	"bisub/internal/daemon"
)

const probeInterval = 200 * time.Millisecond

// LaunchOptions are forwarded to `bisub daemon run`.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// StartState says whether EnsureStarted launched a daemon.
type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult is the outcome of EnsureStarted.
type StartResult struct {
	State StartState
	PID   int
}

// ErrDaemonNotRunning means no process holds the daemon lock.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult is the outcome of StopAndTerminate.
type StopResult struct {
	PID int
	// ForcedKill is set when the daemon ignored SIGTERM for the whole grace
	// period.
	ForcedKill bool
}

// Launch spawns `executable daemon run` in its own session and does not wait
// for it.
func Launch(executable string, opts LaunchOptions) error {
	if strings.TrimSpace(executable) == "" {
		return errors.New("resolve executable: executable path is empty")
	}
	args := []string{"daemon", "run"}
	for _, flag := range [][2]string{{"--config", opts.ConfigPath}, {"--log-level", opts.LogLevel}} {
		if value := strings.TrimSpace(flag[1]); value != "" {
			args = append(args, flag[0], value)
		}
	}
	cmd := exec.Command(executable, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return cmd.Process.Release()
}

// pollProbe probes the daemon lock until done accepts a probe or timeout
// passes. It returns the accepted probe, or the last probe error on timeout.
func pollProbe(cfg *config.Config, timeout time.Duration, done func(daemon.ProbeResult) bool) (daemon.ProbeResult, bool, error) {
	var lastErr error
	for deadline := time.Now().Add(timeout); time.Now().Before(deadline); time.Sleep(probeInterval) {
		probe, err := daemon.Probe(cfg)
		if err == nil && done(probe) {
			return probe, true, nil
		}
		lastErr = err
	}
	return daemon.ProbeResult{}, false, lastErr
}

// WaitForStart waits until some process holds the daemon lock.
func WaitForStart(cfg *config.Config, timeout time.Duration) (daemon.ProbeResult, error) {
	probe, ok, err := pollProbe(cfg, timeout, func(p daemon.ProbeResult) bool { return p.Running })
	if ok {
		return probe, nil
	}
	if err == nil {
		err = errors.New("timeout waiting for daemon")
	}
	return daemon.ProbeResult{}, fmt.Errorf("daemon failed to start: %w", err)
}

// WaitForShutdown waits until the daemon lock is free.
func WaitForShutdown(cfg *config.Config, timeout time.Duration) error {
	if _, ok, _ := pollProbe(cfg, timeout, func(p daemon.ProbeResult) bool { return !p.Running }); !ok {
		return fmt.Errorf("daemon did not stop within %s", timeout)
	}
	return nil
}

// EnsureStarted launches a daemon unless one already holds the lock.
func EnsureStarted(cfg *config.Config, executable string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	probe, err := daemon.Probe(cfg)
	switch {
	case err != nil:
		return StartResult{}, err
	case probe.Running:
		return StartResult{State: StartStateAlreadyRunning, PID: probe.PID}, nil
	}
	if err := Launch(executable, opts); err != nil {
		return StartResult{}, err
	}
	if probe, err = WaitForStart(cfg, waitTimeout); err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: probe.PID}, nil
}

// StopAndTerminate sends SIGTERM to the daemon and kills it if it still
// holds the lock after grace.
func StopAndTerminate(cfg *config.Config, grace time.Duration) (StopResult, error) {
	probe, err := daemon.Probe(cfg)
	switch {
	case err != nil:
		return StopResult{}, err
	case !probe.Running:
		return StopResult{}, ErrDaemonNotRunning
	case probe.PID <= 0:
		return StopResult{}, fmt.Errorf("daemon holds %s but its pid file is unreadable", probe.LockPath)
	case probe.PID == os.Getpid():
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", probe.PID)
	}

	result := StopResult{PID: probe.PID}
	proc, err := os.FindProcess(probe.PID)
	if err != nil {
		return result, fmt.Errorf("locate daemon process %d: %w", probe.PID, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return result, fmt.Errorf("signal daemon process %d: %w", probe.PID, err)
	}
	if WaitForShutdown(cfg, grace) == nil {
		return result, nil
	}
	if err := proc.Kill(); err != nil {
		return result, fmt.Errorf("kill daemon process %d: %w", probe.PID, err)
	}
	// A killed daemon cannot remove its own pid file.
	_ = os.Remove(daemon.PIDPath(cfg))
	result.ForcedKill = true
	return result, nil
}
