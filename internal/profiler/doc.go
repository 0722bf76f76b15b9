// Package profiler resolves the execution profile a bisub process runs
// with: compute device, recognition model size, input size ceiling, and
// locale.
//
// Resolve probes the configured tools and the accelerator once at startup.
// A missing ffmpeg or ffprobe is a configuration error; everything else
// degrades, ultimately to the smallest model on the CPU.
package profiler
