// Package subtitles turns recognized speech segments and their translations
// into an ordered, non-overlapping bilingual subtitle document.
//
// Synchronize runs the full policy: blank segments are dropped, segments
// longer than the maximum display duration are split (at the silence gap
// nearest their midpoint when word timings allow, otherwise evenly), short
// neighbours separated by a small gap are merged, and each remaining cue is
// composed according to the job's Mode. Timestamps are rounded to whole
// milliseconds, overlaps created by rounding are clamped, and the result is
// checked before it is returned; a violation is reported as
// services.ErrSynchronization.
//
// Documents render to and parse from SRT.
package subtitles
