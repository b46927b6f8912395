// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package feed

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timePtr(t time.Time) *time.Time { return &t }

var fixedNow = time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

func testParser() Parser {
	return Parser{Now: func() time.Time { return fixedNow }}
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"new style", "http://arxiv.org/abs/2301.07041v1", "2301.07041v1"},
		{"https", "https://arxiv.org/abs/2401.00001v3", "2401.00001v3"},
		{"old style keeps archive", "http://arxiv.org/abs/hep-th/9901001v1", "hep-th/9901001v1"},
		{"trailing slash", "http://arxiv.org/abs/2301.07041v1/", "2301.07041v1"},
		{"no abs prefix", "http://example.org/items/abc123", "abc123"},
		{"bare id", "2301.07041", "2301.07041"},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractID(tt.raw))
		})
	}
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "Attention Is All You Need", normalizeText("  Attention\n   Is\tAll  You Need \n"))
	assert.Equal(t, "", normalizeText(" \n\t "))
	// Decomposed e + combining acute composes to a single rune.
	assert.Equal(t, "caf\u00e9", normalizeText("cafe\u0301"))
}

func TestParse_FullEntry(t *testing.T) {
	item := &gofeed.Item{
		GUID:            "http://arxiv.org/abs/2401.00001v1",
		Title:           "Attention  Is\n  All You Need",
		Description:     "  We revisit\n transformers. ",
		Authors:         []*gofeed.Person{{Name: "Ada Lovelace"}, {Name: " Alan Turing "}, {Name: ""}, nil},
		Categories:      []string{"cs.AI", "cs.LG", "cs.AI"},
		PublishedParsed: timePtr(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)),
		UpdatedParsed:   timePtr(time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)),
		Extensions: ext.Extensions{
			"arxiv": {
				"primary_category": {{Name: "primary_category", Attrs: map[string]string{"term": "cs.LG"}}},
				"comment":          {{Name: "comment", Value: "12 pages,\n 3 figures"}},
			},
		},
	}

	r, ok := testParser().Parse(item)
	require.True(t, ok)

	assert.Equal(t, "2401.00001v1", r.ID)
	assert.Equal(t, "Attention Is All You Need", r.Title)
	assert.Equal(t, "We revisit transformers.", r.Abstract)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, r.Authors)
	assert.Equal(t, []string{"cs.LG", "cs.AI"}, r.Categories)
	assert.Equal(t, "https://arxiv.org/abs/2401.00001v1", r.SourceURL)
	assert.Equal(t, "https://arxiv.org/pdf/2401.00001v1", r.ArtifactURL)
	assert.Equal(t, "12 pages, 3 figures", r.Comment)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), r.Published)
	assert.Equal(t, time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), r.Updated)
}

func TestParse_MissingIdentityDropped(t *testing.T) {
	_, ok := testParser().Parse(&gofeed.Item{Title: "No id"})
	assert.False(t, ok)

	_, ok = testParser().Parse(nil)
	assert.False(t, ok)
}

func TestParse_MissingDatesDefault(t *testing.T) {
	r, ok := testParser().Parse(&gofeed.Item{GUID: "http://arxiv.org/abs/2401.00002v1"})
	require.True(t, ok)

	assert.Equal(t, fixedNow, r.Published)
	assert.Equal(t, r.Published, r.Updated)
	assert.Empty(t, r.Title)
	assert.Empty(t, r.Categories)
	assert.Empty(t, r.Comment)
}

func TestParse_UpdatedOnlyFallsBackToPublished(t *testing.T) {
	published := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	r, ok := testParser().Parse(&gofeed.Item{
		GUID:            "http://arxiv.org/abs/2401.00003v1",
		PublishedParsed: &published,
	})
	require.True(t, ok)
	assert.Equal(t, published, r.Updated)
}

func TestParse_UpdatedBeforePublishedIsRaised(t *testing.T) {
	published := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	r, ok := testParser().Parse(&gofeed.Item{
		GUID:            "http://arxiv.org/abs/2401.00004v1",
		PublishedParsed: &published,
		UpdatedParsed:   timePtr(published.Add(-time.Hour)),
	})
	require.True(t, ok)
	assert.False(t, r.Updated.Before(r.Published))
}

func TestParse_NoPrimaryCategory(t *testing.T) {
	r, ok := testParser().Parse(&gofeed.Item{
		GUID:       "http://arxiv.org/abs/2401.00005v1",
		Categories: []string{"cs.CV", " cs.CV ", "stat.ML"},
	})
	require.True(t, ok)
	assert.Equal(t, []string{"cs.CV", "stat.ML"}, r.Categories)
}

func TestBuildSearchQuery(t *testing.T) {
	start := time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		categories []string
		want       string
	}{
		{"single", []string{"cs.AI"}, "(cat:cs.AI) AND submittedDate:[20231229* TO *]"},
		{"multiple", []string{"cs.AI", "cs.LG"}, "(cat:cs.AI OR cat:cs.LG) AND submittedDate:[20231229* TO *]"},
		{"blank entries skipped", []string{" ", "cs.CL"}, "(cat:cs.CL) AND submittedDate:[20231229* TO *]"},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildSearchQuery(tt.categories, start))
		})
	}
}

func TestWindowStart(t *testing.T) {
	target := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC), WindowStart(target, 3))
	assert.Equal(t, target, WindowStart(target, 0))
}
