// Package ffmpeg drives the ffmpeg binary for the two media transforms the
// pipeline needs: extracting a mono 16 kHz WAV track for speech
// recognition, and burning a subtitle document into a re-encoded video.
//
// Both write through a temporary file in the destination directory and
// rename on success, so a destination path only ever holds a complete file.
// Tests inject a CommandRunner in place of the real binary.
package ffmpeg
