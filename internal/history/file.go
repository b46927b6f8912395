// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const fileExt = ".jsonl"

// DefaultFileDir is the file store location under a data directory.
func DefaultFileDir(dataDir string) string {
	return filepath.Join(dataDir, "history")
}

// FileStore keeps one JSONL file per batch, one {"id": ...} object per line.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store rooted at dir. The directory is created on
// first Append.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

type idLine struct {
	ID string `json:"id"`
}

func (s *FileStore) path(batchID string) string {
	return filepath.Join(s.dir, batchID+fileExt)
}

// Load reads the batches in the window. Missing batches are skipped.
func (s *FileStore) Load(ctx context.Context, before time.Time, windowDays int) (IDSet, error) {
	set := make(IDSet)
	for _, batchID := range window(before, windowDays) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids, err := s.read(batchID)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			set.Add(id)
		}
	}
	return set, nil
}

func (s *FileStore) read(batchID string) ([]string, error) {
	f, err := os.Open(s.path(batchID))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var l idLine
		if err := json.Unmarshal(line, &l); err != nil {
			return nil, fmt.Errorf("history %s line %d: %w", batchID, n, err)
		}
		if l.ID != "" {
			ids = append(ids, l.ID)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading history %s: %w", batchID, err)
	}
	return ids, nil
}

// Append rewrites the batch file with ids. The write goes to a temporary
// file that is renamed into place.
func (s *FileStore) Append(ctx context.Context, batchID string, ids []string) error {
	if err := validBatchID(batchID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, id := range uniqueIDs(ids) {
		if err := enc.Encode(idLine{ID: id}); err != nil {
			return fmt.Errorf("encoding history id: %w", err)
		}
	}

	tmp := s.path(batchID) + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing history %s: %w", batchID, err)
	}
	if err := os.Rename(tmp, s.path(batchID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing history %s: %w", batchID, err)
	}
	return nil
}

// Batches lists the batch files, newest first.
func (s *FileStore) Batches(ctx context.Context) ([]BatchInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history directory: %w", err)
	}

	var out []BatchInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		batchID := strings.TrimSuffix(e.Name(), fileExt)
		if validBatchID(batchID) != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids, err := s.read(batchID)
		if err != nil {
			return nil, err
		}
		info := BatchInfo{ID: batchID, Count: len(ids)}
		if fi, err := e.Info(); err == nil {
			info.UpdatedAt = fi.ModTime().UTC()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
