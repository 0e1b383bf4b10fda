// Package logs reads back the audiopipe log file for `audiopipe logs`.
//
// Tail returns the last N lines, or the lines appended after a byte offset,
// with bounded memory use. An optional line filter narrows output to a single
// job; JobFilter matches the job_id field written by both the console and
// JSON log formats. Follow mode polls for appended lines until the wait
// elapses or the context is cancelled.
package logs
