// Package ffmpeg wraps the ffmpeg and ffprobe command-line tools for the
// audio operations the pipeline stages need.
//
// Key entry points:
//   - Probe: executes ffprobe and returns parsed stream/format metadata
//   - VolumeDetect: runs the volumedetect filter and parses mean/max levels
//   - Transcode: decodes any supported input into PCM WAV
//   - ApplyGain: writes a copy of the input with a fixed dB gain applied
//
// Every function takes the binary name or path so callers can honour
// configured overrides; an empty value falls back to the tool's default name.
package ffmpeg
