// Package workspace manages the per-job directories beneath the configured
// output root.
//
// Each running job holds an exclusive flock on a lock file inside its
// directory. Retention pruning takes the same lock before deleting a job, so a
// job that is still running is never removed underneath its stages. Files
// that readers poll (manifest.json) are written through a temp file and a
// rename so a reader sees either nothing or the complete document.
package workspace
