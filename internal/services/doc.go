// Package services defines shared utilities consumed by pipeline stages and
// their external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so stage failures carry a
//     consistent kind and a user-facing message.
//
// Use these helpers when wiring new stage logic so failure reporting and
// observability stay uniform across the pipeline.
package services
