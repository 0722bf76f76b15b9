// Command bisub submits videos for bilingual subtitling and manages the
// queue and daemon.
//
// The CLI reads and writes the queue database directly; a running daemon
// picks up submitted jobs on its next poll. Commands that change a job
// (cancel, retry, clear) take effect the same way.
package main
