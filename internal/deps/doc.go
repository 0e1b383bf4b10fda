// Package deps checks that the external command-line tools the pipeline
// stages shell out to (demucs, ffmpeg, ffprobe, the decomposition helper)
// can be found on PATH.
package deps
