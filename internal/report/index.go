// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// IndexFile is the index written into the data directory.
const IndexFile = "README.md"

// Index markers delimit the generated list; text outside them is kept.
const (
	indexStart = "<!-- REPORTS START -->"
	indexEnd   = "<!-- REPORTS END -->"
)

// DefaultIndexSize is how many digests the index links.
const DefaultIndexSize = 10

// ListReports returns the dates of the digests in dataDir, newest first.
func ListReports(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	var dates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		date := strings.TrimSuffix(name, ".md")
		if _, err := time.Parse(types.DateLayout, date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

// WriteIndex links the newest n digests from dataDir/README.md. An existing
// index keeps everything outside the marker comments.
func WriteIndex(dataDir string, n int) error {
	if n <= 0 {
		n = DefaultIndexSize
	}
	dates, err := ListReports(dataDir)
	if err != nil {
		return err
	}
	if len(dates) > n {
		dates = dates[:n]
	}

	var links strings.Builder
	for _, d := range dates {
		fmt.Fprintf(&links, "- [%s](%s.md)\n", d, d)
	}
	block := indexStart + "\n" + links.String() + indexEnd

	path := filepath.Join(dataDir, IndexFile)
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading index: %w", err)
	}

	var content string
	start := strings.Index(string(existing), indexStart)
	end := strings.Index(string(existing), indexEnd)
	if start >= 0 && end > start {
		s := string(existing)
		content = s[:start] + block + s[end+len(indexEnd):]
	} else {
		content = "# Daily arXiv Digests\n\n" + block + "\n"
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}
