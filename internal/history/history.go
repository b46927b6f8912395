// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history records which record ids each run has seen, keyed by run
// date, so later runs can skip them. Two stores are provided: one JSONL file
// per date, and a single SQLite database.
package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Store persists the ids seen by each run. A batch id is a run date in
// types.DateLayout form.
type Store interface {
	// Load returns the union of ids recorded for the windowDays dates
	// strictly before the given date.
	Load(ctx context.Context, before time.Time, windowDays int) (IDSet, error)

	// Append records ids under batchID, replacing anything recorded for it
	// before, so re-running a date does not grow its batch.
	Append(ctx context.Context, batchID string, ids []string) error

	// Batches lists stored batches, newest first.
	Batches(ctx context.Context) ([]BatchInfo, error)

	Close() error
}

// BatchInfo describes one stored batch.
type BatchInfo struct {
	ID        string
	Count     int
	UpdatedAt time.Time
}

// IDSet is a set of record ids.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id.
func (s IDSet) Add(id string) { s[id] = struct{}{} }

// Contains reports whether id is in the set.
func (s IDSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in lexical order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Open returns the store selected by cfg. An empty path defaults to
// dataDir/history for the file backend and dataDir/history.db for SQLite.
// runID tags rows written by the SQLite store.
func Open(cfg types.HistoryConfig, dataDir, runID string) (Store, error) {
	switch cfg.Backend {
	case "", BackendFile:
		path := cfg.Path
		if path == "" {
			path = DefaultFileDir(dataDir)
		}
		return NewFileStore(path), nil
	case BackendSQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultSQLitePath(dataDir)
		}
		return NewSQLiteStore(path, runID)
	default:
		return nil, &types.ConfigError{
			Field: "history.backend",
			Err:   fmt.Errorf("unknown backend %q (want %q or %q)", cfg.Backend, BackendFile, BackendSQLite),
		}
	}
}

// window returns the batch ids covered by a Load, oldest first.
func window(before time.Time, windowDays int) []string {
	ids := make([]string, 0, max(windowDays, 0))
	for i := windowDays; i >= 1; i-- {
		ids = append(ids, before.AddDate(0, 0, -i).Format(types.DateLayout))
	}
	return ids
}

func validBatchID(batchID string) error {
	if _, err := time.Parse(types.DateLayout, batchID); err != nil {
		return fmt.Errorf("batch id %q is not a date: %w", batchID, err)
	}
	return nil
}
