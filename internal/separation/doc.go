// Package separation implements the audio_separation stage, which splits a
// mixed track into its drums, bass, other, and vocals stems.
//
// The stage delegates to a Separator created through a Registry on first
// use. Demucs, driven through its command-line interface, is the only
// backend registered by default. Stems are written to
// <job dir>/demucs_output/<stem>.wav regardless of backend, which is where
// the separated-track decomposition stage looks for them.
package separation
