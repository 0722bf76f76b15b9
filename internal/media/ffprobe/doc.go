// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and decodes its streams and format sections. Result
// helpers answer the questions the pipeline asks of an input: how long it
// is, whether it carries an audio stream, and which language that stream is
// tagged with.
package ffprobe
