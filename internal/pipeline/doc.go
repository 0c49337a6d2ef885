// Package pipeline orchestrates one file's journey: probe, prediction,
// optional calibration, parameter search, verification, and commit. Every
// per-file error becomes a terminal Outcome at the file boundary, so batch
// runs always finish the remaining files.
package pipeline
