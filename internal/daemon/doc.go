// Package daemon owns the long-running bisub process lifecycle.
//
// It binds configuration, queue storage, and the workflow manager into a
// single start/stop sequence guarded by a flock so only one daemon processes
// a queue database at a time. On start it sweeps staging directories left by
// jobs that no longer exist. Probe lets the CLI discover a running daemon
// through the same lock without talking to it.
//
// Stage logic belongs in internal/pipeline; the daemon only handles startup,
// shutdown, and status.
package daemon
