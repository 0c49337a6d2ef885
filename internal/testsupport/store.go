package testsupport

import (
	"testing"

	"transmute/internal/config"
	"transmute/internal/ledger"
)

// MustOpenLedger opens the conversion ledger for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Ledger {
	t.Helper()

	book, err := ledger.Open(cfg.Paths.LedgerPath)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = book.Close()
	})
	return book
}
