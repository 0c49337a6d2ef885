// Package ledger persists per-file conversion outcomes so batch runs can
// resume without reprocessing. It is owned by the CLI; the engine never
// reads it.
package ledger
