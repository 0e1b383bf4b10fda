// Package preflight provides readiness checks for the filesystem paths and
// external tools audiopipe depends on.
//
// `audiopipe doctor` prints every result. `audiopipe process` runs the
// directory checks first and refuses to start a job that could not write its
// manifest.
package preflight
