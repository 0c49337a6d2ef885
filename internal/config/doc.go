// Package config loads, normalizes, and validates transmute's TOML
// configuration, including the numeric prediction tables the starting-point
// model runs on. Load merges an optional user file over Default and expands
// all path fields, so downstream code never sees unresolved "~" paths or
// missing table entries.
package config
