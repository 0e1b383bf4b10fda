// Package decomposition implements the harmonic/percussive source separation
// stages.
//
// The DSP itself runs in an external helper command invoked as
//
//	<command> <input> <harmonic output> <percussive output>
//
// Stage decomposes the job input. TrackStage decomposes each stem written by
// the separation stage and tolerates stems that are missing or fail.
package decomposition
