// Package textutil provides small text helpers for CLI presentation.
package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var identifierSeparators = strings.NewReplacer("_", " ", "-", " ")

// Label renders a snake_case or kebab-case identifier as a human-readable
// title for tables and help text.
func Label(identifier string) string {
	spaced := identifierSeparators.Replace(strings.TrimSpace(identifier))
	if spaced == "" {
		return ""
	}
	return cases.Title(language.Und).String(spaced)
}

// Ternary is a generic conditional helper that returns a if cond is true, b otherwise.
func Ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}
