// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	seenTable = "seen_ids"

	// insertChunk keeps each INSERT well under SQLite's variable limit.
	insertChunk = 200
)

// DefaultSQLitePath is the SQLite store location under a data directory.
func DefaultSQLitePath(dataDir string) string {
	return filepath.Join(dataDir, "history.db")
}

// SQLiteStore keeps every batch in one table of a SQLite database. Each row
// also carries the id of the run that wrote it.
type SQLiteStore struct {
	db    *sql.DB
	runID string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at path. An empty runID is
// replaced by a fresh UUID.
func NewSQLiteStore(path, runID string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	s := &SQLiteStore{db: db, runID: runID}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS seen_ids (
			batch_id TEXT NOT NULL,
			id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (batch_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_seen_ids_id ON seen_ids(id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load selects ids whose batch falls inside the window. Batch ids are ISO
// dates, so lexical comparison orders them by date.
func (s *SQLiteStore) Load(ctx context.Context, before time.Time, windowDays int) (IDSet, error) {
	set := make(IDSet)
	days := window(before, windowDays)
	if len(days) == 0 {
		return set, nil
	}

	query, args, err := sq.Select("DISTINCT id").
		From(seenTable).
		Where(sq.GtOrEq{"batch_id": days[0]}).
		Where(sq.LtOrEq{"batch_id": days[len(days)-1]}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building history query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning history id: %w", err)
		}
		set.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return set, nil
}

// Append replaces the batch in a single transaction.
func (s *SQLiteStore) Append(ctx context.Context, batchID string, ids []string) error {
	if err := validBatchID(batchID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning history transaction: %w", err)
	}
	defer tx.Rollback()

	del, args, err := sq.Delete(seenTable).Where(sq.Eq{"batch_id": batchID}).ToSql()
	if err != nil {
		return fmt.Errorf("building history delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		return fmt.Errorf("clearing batch %s: %w", batchID, err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	unique := uniqueIDs(ids)
	for start := 0; start < len(unique); start += insertChunk {
		end := min(start+insertChunk, len(unique))
		ins := sq.Insert(seenTable).Columns("batch_id", "id", "run_id", "recorded_at")
		for _, id := range unique[start:end] {
			ins = ins.Values(batchID, id, s.runID, now)
		}
		stmt, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("building history insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("inserting batch %s: %w", batchID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch %s: %w", batchID, err)
	}
	return nil
}

// Batches groups rows by batch, newest first.
func (s *SQLiteStore) Batches(ctx context.Context) ([]BatchInfo, error) {
	query, args, err := sq.Select("batch_id", "COUNT(*)", "MAX(recorded_at)").
		From(seenTable).
		GroupBy("batch_id").
		OrderBy("batch_id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building batch query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var out []BatchInfo
	for rows.Next() {
		var (
			info       BatchInfo
			recordedAt string
		)
		if err := rows.Scan(&info.ID, &info.Count, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			info.UpdatedAt = t
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batches: %w", err)
	}
	return out, nil
}

// RunIDs returns the run ids that wrote batchID.
func (s *SQLiteStore) RunIDs(ctx context.Context, batchID string) ([]string, error) {
	query, args, err := sq.Select("DISTINCT run_id").
		From(seenTable).
		Where(sq.Eq{"batch_id": batchID}).
		OrderBy("run_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building run id query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying run ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning run id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
