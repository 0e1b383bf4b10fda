// Package pipeline runs audio jobs through an ordered list of stages and
// records the outcome of each job in a versioned manifest.
//
// An Engine owns the stage list and a workspace root. Process creates a job
// directory, runs every stage in registration order on the calling
// goroutine, and stops at the first stage that rejects its input or fails.
// The manifest is written to <base>/<job_id>/manifest.json once the job
// reaches a terminal state; JobStatus and Outputs read it back and report a
// miss as an absent result rather than an error.
//
// Stages share one input path: every stage receives the job's original input
// file, not the outputs of the stage before it. Outputs from all stages are
// merged into a single map where a later stage overwrites an earlier key.
package pipeline
