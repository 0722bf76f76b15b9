// Package staging manages the per-job temporary directories that hold
// extracted audio, recognizer output, and intermediate subtitles.
//
// Each job owns job-<id> under the staging root. The directory is removed
// when the job completes, is cancelled, or fails at a stage whose retry does
// not read staged audio; CleanOrphaned and CleanStale sweep anything a crash
// or a removed job left behind.
package staging
