// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch reads and writes the per-run JSONL files, one JSON object
// per line, named {date}_{stage}.jsonl under the data directory. The
// enrichment checkpoint also carries the analysis language.
package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
)

// Stage names a pipeline checkpoint.
type Stage string

// Pipeline checkpoints, in the order they are written.
const (
	StageRaw      Stage = "raw"
	StageUnique   Stage = "unique"
	StageNewOnly  Stage = "new_only"
	StageEnriched Stage = "enriched"
)

// Path returns the file for a stage of the run on date.
func Path(dataDir, date string, stage Stage) string {
	return filepath.Join(dataDir, date+"_"+string(stage)+".jsonl")
}

// EnrichedPath returns the enrichment checkpoint for the run on date in
// language, e.g. 2024-01-01_enriched_english.jsonl. Analyses in different
// languages never share a file.
func EnrichedPath(dataDir, date, language string) string {
	return filepath.Join(dataDir, date+"_"+string(StageEnriched)+"_"+languageSlug(language)+".jsonl")
}

// languageSlug lower-cases language and replaces everything but letters and
// digits with '-'.
func languageSlug(language string) string {
	slug := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '-'
	}, strings.TrimSpace(language))
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "default"
	}
	return slug
}

// ReportPath returns the Markdown report for the run on date.
func ReportPath(dataDir, date string) string {
	return filepath.Join(dataDir, date+".md")
}

// Write replaces path with items, one per line. The file is written to a
// temporary name and renamed into place.
func Write[T any](path string, items []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("encoding line %d of %s: %w", i+1, path, err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// Read decodes every line of path. Blank lines are skipped. A final line
// without a newline that does not decode is treated as an interrupted
// append and dropped; any other bad line is an error.
func Read[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var items []T
	r := bufio.NewReader(f)
	for n := 1; ; n++ {
		line, readErr := r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("reading %s: %w", path, readErr)
		}
		terminated := readErr == nil

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var item T
			if err := json.Unmarshal(trimmed, &item); err != nil {
				if !terminated {
					break
				}
				return nil, fmt.Errorf("%s line %d: %w", path, n, err)
			}
			items = append(items, item)
		}
		if !terminated {
			break
		}
	}
	return items, nil
}

// Remove deletes the given files, ignoring those that do not exist.
func Remove(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Appender writes items to the end of a JSONL file as they are produced.
// Each item is written with a single write call. Safe for concurrent use.
type Appender[T any] struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenAppender opens path for appending, creating it when needed. A
// trailing partial line left by an interrupted append is cut off first, so
// the file stays readable by Read.
func OpenAppender[T any](path string) (*Appender[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := dropPartialLine(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &Appender[T]{f: f, path: path}, nil
}

func dropPartialLine(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 || data[len(data)-1] == '\n' {
		return nil
	}
	keep := bytes.LastIndexByte(data, '\n') + 1
	if err := os.Truncate(path, int64(keep)); err != nil {
		return fmt.Errorf("truncating %s: %w", path, err)
	}
	return nil
}

// Append encodes item as one line.
func (a *Appender[T]) Append(item T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(item); err != nil {
		return fmt.Errorf("encoding item for %s: %w", a.path, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("appending to %s: %w", a.path, err)
	}
	return nil
}

// Close flushes and closes the file.
func (a *Appender[T]) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.f.Sync(); err != nil {
		a.f.Close()
		return fmt.Errorf("syncing %s: %w", a.path, err)
	}
	return a.f.Close()
}
