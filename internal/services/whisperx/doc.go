// Package whisperx runs WhisperX through uvx to recognize speech in an
// extracted audio track.
//
// The recognizer writes JSON output into a per-job directory; Recognize
// decodes it into subtitle segments with word timings and the language
// WhisperX reported. Model, device, and compute type come from the
// environment profile.
package whisperx
