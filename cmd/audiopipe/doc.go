// Package main hosts the audiopipe CLI entrypoint and command graph.
//
// The Cobra-based command tree runs audio files through the configured
// pipeline, reads job manifests back by id, lists jobs from the SQLite index,
// prunes expired job directories, and checks that the external tools the
// stages need are installed. Configuration resolution, logger setup, and
// engine assembly live in commandContext so subcommands only deal with
// presentation.
package main
