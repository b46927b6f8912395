// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func paper(id string, authors int, cats ...string) types.EnrichedRecord {
	r := types.EnrichedRecord{
		Record: types.Record{
			ID:          id,
			Title:       "Paper " + id,
			Categories:  cats,
			Published:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			SourceURL:   "https://arxiv.org/abs/" + id,
			ArtifactURL: "https://arxiv.org/pdf/" + id,
		},
		Analysis: types.Analysis{
			TLDR: "tldr " + id, Motivation: "mot " + id, Method: "meth " + id,
			Result: "res " + id, Conclusion: "conc " + id,
		},
	}
	for i := 0; i < authors; i++ {
		r.Authors = append(r.Authors, "Author "+string(rune('A'+i)))
	}
	return r
}

func TestCategoryStats(t *testing.T) {
	papers := []types.EnrichedRecord{
		paper("1", 1, "cs.LG", "cs.AI"),
		paper("2", 1, "cs.CV", "cs.AI"),
		paper("3", 1, "cs.CL", "cs.LG", "cs.AI"),
	}

	got := CategoryStats(papers, 0)
	assert.Equal(t, []CategoryCount{
		{"cs.AI", 3}, {"cs.LG", 2}, {"cs.CV", 1}, {"cs.CL", 1},
	}, got)

	assert.Len(t, CategoryStats(papers, 2), 2)
	assert.Empty(t, CategoryStats(nil, 5))
}

func TestSummarize(t *testing.T) {
	failed := paper("3", 0, "cs.AI")
	failed.Analysis = types.ErrorAnalysis()

	s := Summarize([]types.EnrichedRecord{paper("1", 2, "cs.AI"), paper("2", 3), failed})
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 5.0/3.0, s.AvgAuthors, 1e-9)

	assert.Zero(t, Summarize(nil).AvgAuthors)
}

func TestRender(t *testing.T) {
	ok := paper("2401.00001v1", 2, "cs.LG", "cs.AI")
	ok.Comment = "12 pages"
	failed := paper("2401.00002v1", 1, "cs.AI")
	failed.Analysis = types.ErrorAnalysis()

	var buf strings.Builder
	err := Render(&buf, Report{
		Date:        "2024-01-01",
		GeneratedAt: time.Date(2024, 1, 1, 6, 30, 0, 0, time.UTC),
		Papers:      []types.EnrichedRecord{ok, failed},
	})
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, "# Daily arXiv Digest: 2024-01-01")
	assert.Contains(t, out, "## [Paper 2401.00001v1](https://arxiv.org/abs/2401.00001v1)")
	assert.Contains(t, out, "**Authors:** Author A, Author B")
	assert.Contains(t, out, "**Categories:** cs.LG, cs.AI")
	assert.Contains(t, out, "**Published:** 2024-01-01")
	assert.Contains(t, out, "**Comment:** 12 pages")
	assert.Contains(t, out, "[PDF](https://arxiv.org/pdf/2401.00001v1)")
	assert.Contains(t, out, "### TL;DR\ntldr 2401.00001v1")
	assert.Contains(t, out, "### Conclusion\nconc 2401.00001v1")
	assert.Contains(t, out, "_Analysis unavailable for this paper._")
	assert.Contains(t, out, "- **Analysis failures:** 1")
	assert.Contains(t, out, "- **Top categories:** cs.AI (2), cs.LG (1)")
	assert.Contains(t, out, "- **Average authors:** 1.5")
	assert.Equal(t, 1, strings.Count(out, "### TL;DR"), "failed paper renders no sections")

	// Papers appear in input order.
	assert.Less(t, strings.Index(out, "2401.00001v1"), strings.Index(out, "2401.00002v1"))
}

func TestRender_Empty(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, Render(&buf, Report{Date: "2024-01-01"}))
	assert.Contains(t, buf.String(), "- **Papers:** 0")
	assert.NotContains(t, buf.String(), "Analysis failures")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "2024-01-01.md")
	require.NoError(t, WriteFile(path, Report{Date: "2024-01-01", Papers: []types.EnrichedRecord{paper("x", 1)}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Paper x")
	assert.NoFileExists(t, path+".tmp")
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
}

func TestListReports(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "2024-01-01.md", "2024-01-03.md", "2023-12-31.md", "README.md", "2024-01-02_raw.jsonl")

	got, err := ListReports(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03", "2024-01-01", "2023-12-31"}, got)
}

func TestWriteIndex_New(t *testing.T) {
	dir := t.TempDir()
	for d := 1; d <= 12; d++ {
		touch(t, dir, time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC).Format(types.DateLayout)+".md")
	}

	require.NoError(t, WriteIndex(dir, 0))

	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "- [2024-01-12](2024-01-12.md)")
	assert.Contains(t, out, "- [2024-01-03](2024-01-03.md)")
	assert.NotContains(t, out, "2024-01-02")
	assert.Equal(t, DefaultIndexSize, strings.Count(out, "- ["))
	assert.Less(t, strings.Index(out, "2024-01-12"), strings.Index(out, "2024-01-11"))
}

func TestWriteIndex_KeepsSurroundingText(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "2024-01-01.md")
	readme := "# My digests\n\nIntro.\n\n" + indexStart + "\n- [old](old.md)\n" + indexEnd + "\n\nFooter.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFile), []byte(readme), 0o644))

	require.NoError(t, WriteIndex(dir, 5))

	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	assert.Equal(t, "# My digests\n\nIntro.\n\n"+indexStart+"\n- [2024-01-01](2024-01-01.md)\n"+indexEnd+"\n\nFooter.\n", string(data))
}
