// Package jobindex keeps a SQLite summary of every job the engine has run.
//
// Manifests on disk remain the source of truth for job results. The index
// exists so the CLI can list jobs without walking the output directory and
// so failed jobs whose manifests were not persisted still appear in listings.
// The schema is versioned; a mismatched database must be cleared rather than
// migrated.
package jobindex
