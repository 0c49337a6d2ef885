package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases are rejected rather than migrated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrLocked indicates another process holds the ledger.
var ErrLocked = errors.New("ledger is locked by another process")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Record is one file's terminal outcome.
type Record struct {
	InputPath     string
	OutputPath    string
	Status        string
	Strategy      string
	CRF           float64
	InputBytes    int64
	OutputBytes   int64
	SizeChangePct float64
	QualityScore  float64
	QualityPath   string
	Reason        string
	RunID         string
	UpdatedAt     time.Time
}

// Ledger manages outcome persistence backed by SQLite, guarded by a file
// lock so concurrent batch invocations fail fast instead of interleaving.
type Ledger struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire ledger lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	ledger := &Ledger{db: db, path: path, lock: lock}
	if err := ledger.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return ledger, nil
}

// Close closes the database and releases the lock.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	var err error
	if l.db != nil {
		err = l.db.Close()
	}
	if l.lock != nil {
		if unlockErr := l.lock.Unlock(); err == nil {
			err = unlockErr
		}
	}
	return err
}

func (l *Ledger) initSchema(ctx context.Context) error {
	var tableExists int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return l.createSchema(ctx)
	}

	var version int
	if err := l.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, l.path)
	}
	return nil
}

func (l *Ledger) createSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Record upserts one file's outcome keyed by its input path.
func (l *Ledger) Record(ctx context.Context, rec Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	return l.execWithRetry(ctx, `
		INSERT INTO conversions
			(input_path, output_path, status, strategy, crf, input_bytes, output_bytes,
			 size_change_pct, quality_score, quality_path, reason, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(input_path) DO UPDATE SET
			output_path = excluded.output_path,
			status = excluded.status,
			strategy = excluded.strategy,
			crf = excluded.crf,
			input_bytes = excluded.input_bytes,
			output_bytes = excluded.output_bytes,
			size_change_pct = excluded.size_change_pct,
			quality_score = excluded.quality_score,
			quality_path = excluded.quality_path,
			reason = excluded.reason,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at`,
		rec.InputPath, rec.OutputPath, rec.Status, rec.Strategy, rec.CRF,
		rec.InputBytes, rec.OutputBytes, rec.SizeChangePct, rec.QualityScore,
		rec.QualityPath, rec.Reason, rec.RunID, rec.UpdatedAt.Format(time.RFC3339))
}

// Lookup returns the recorded outcome for an input path, if any.
func (l *Ledger) Lookup(ctx context.Context, inputPath string) (*Record, bool, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT input_path, output_path, status, strategy, crf, input_bytes, output_bytes,
		       size_change_pct, quality_score, quality_path, reason, run_id, updated_at
		FROM conversions WHERE input_path = ?`, inputPath)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup %s: %w", inputPath, err)
	}
	return rec, true, nil
}

// Completed reports whether the file already has an accepted outcome, which
// batch uses to skip it on resume.
func (l *Ledger) Completed(ctx context.Context, inputPath string) (bool, error) {
	rec, ok, err := l.Lookup(ctx, inputPath)
	if err != nil || !ok {
		return false, err
	}
	return rec.Status == "accepted" || rec.Status == "best_effort", nil
}

// List returns every recorded outcome ordered by most recent first.
func (l *Ledger) List(ctx context.Context) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT input_path, output_path, status, strategy, crf, input_bytes, output_bytes,
		       size_change_pct, quality_score, quality_path, reason, run_id, updated_at
		FROM conversions ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec       Record
		updatedAt string
	)
	if err := row.Scan(&rec.InputPath, &rec.OutputPath, &rec.Status, &rec.Strategy, &rec.CRF,
		&rec.InputBytes, &rec.OutputBytes, &rec.SizeChangePct, &rec.QualityScore,
		&rec.QualityPath, &rec.Reason, &rec.RunID, &updatedAt); err != nil {
		return nil, err
	}
	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		rec.UpdatedAt = ts
	}
	return &rec, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (l *Ledger) execWithRetry(ctx context.Context, query string, args ...any) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		_, lastErr = l.db.ExecContext(ctx, query, args...)
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
