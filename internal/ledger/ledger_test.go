package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndLookup(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	rec := Record{
		InputPath:     "/media/a.mkv",
		OutputPath:    "/media/a.av1.mkv",
		Status:        "accepted",
		Strategy:      "compress_with_quality",
		CRF:           27.5,
		InputBytes:    1 << 30,
		OutputBytes:   1 << 29,
		SizeChangePct: -50,
		QualityScore:  0.991,
		QualityPath:   "ms-ssim+ssim",
		RunID:         "run-1",
	}
	if err := l.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, ok, err := l.Lookup(ctx, "/media/a.mkv")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("record missing")
	}
	if got.CRF != 27.5 || got.Status != "accepted" || got.QualityPath != "ms-ssim+ssim" {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("updated_at not recorded")
	}

	_, ok, err = l.Lookup(ctx, "/media/missing.mkv")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("unexpected record for unknown path")
	}
}

func TestRecordUpserts(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	if err := l.Record(ctx, Record{InputPath: "/media/a.mkv", Status: "rejected", Strategy: "ultimate", InputBytes: 100, RunID: "run-1"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Record(ctx, Record{InputPath: "/media/a.mkv", Status: "accepted", Strategy: "ultimate", InputBytes: 100, RunID: "run-2"}); err != nil {
		t.Fatal(err)
	}

	records, err := l.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("len = %d, want 1 after upsert", len(records))
	}
	if records[0].Status != "accepted" || records[0].RunID != "run-2" {
		t.Fatalf("upsert lost: %+v", records[0])
	}
}

func TestCompleted(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	cases := []struct {
		status string
		want   bool
	}{
		{"accepted", true},
		{"best_effort", true},
		{"rejected", false},
		{"failed", false},
	}
	for i, tc := range cases {
		path := filepath.Join("/media", tc.status+".mkv")
		if err := l.Record(ctx, Record{InputPath: path, Status: tc.status, Strategy: "ultimate", InputBytes: int64(i + 1), RunID: "run"}); err != nil {
			t.Fatal(err)
		}
		done, err := l.Completed(ctx, path)
		if err != nil {
			t.Fatal(err)
		}
		if done != tc.want {
			t.Errorf("Completed(%s) = %v, want %v", tc.status, done, tc.want)
		}
	}

	done, err := l.Completed(ctx, "/media/never-seen.mkv")
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("unknown file reported complete")
	}
}

func TestOpenRejectsSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	first, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	_, err = Open(path)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Record(context.Background(), Record{InputPath: "/media/a.mkv", Status: "accepted", Strategy: "ultimate", InputBytes: 1, RunID: "run"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	done, err := reopened.Completed(context.Background(), "/media/a.mkv")
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("record lost across reopen")
	}
}
