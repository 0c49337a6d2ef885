// Package services defines shared utilities consumed by the conversion engine
// and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp file paths, search phase names, and run
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent per-file rejection reasons.
//
// Use these helpers when wiring new engine logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
