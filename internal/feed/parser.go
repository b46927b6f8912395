// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package feed

import (
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const (
	arxivNamespace = "arxiv"
	absPrefix      = "/abs/"
	absBaseURL     = "https://arxiv.org/abs/"
	pdfBaseURL     = "https://arxiv.org/pdf/"
)

// atomTranslator is gofeed's Atom translator without the <updated>
// fallback for a missing <published>, so Parser can apply its own default.
type atomTranslator struct {
	gofeed.DefaultAtomTranslator
}

func (t *atomTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	out, err := t.DefaultAtomTranslator.Translate(feed)
	if err != nil {
		return nil, err
	}
	af, ok := feed.(*atom.Feed)
	if !ok || len(af.Entries) != len(out.Items) {
		return out, nil
	}
	for i, entry := range af.Entries {
		if entry.PublishedParsed == nil {
			out.Items[i].Published = ""
			out.Items[i].PublishedParsed = nil
		}
	}
	return out, nil
}

func newFeedParser() *gofeed.Parser {
	fp := gofeed.NewParser()
	fp.AtomTranslator = &atomTranslator{}
	return fp
}

// Parser turns feed items into Records. The zero value is ready to use.
type Parser struct {
	// Now supplies the published time for entries that lack one.
	// Defaults to time.Now.
	Now func() time.Time
}

// Parse normalizes one feed entry. It returns false when the entry has no
// usable identity; every other missing field gets a default.
func (p Parser) Parse(item *gofeed.Item) (types.Record, bool) {
	if item == nil {
		return types.Record{}, false
	}
	id := extractID(item.GUID)
	if id == "" {
		return types.Record{}, false
	}

	r := types.Record{
		ID:          id,
		Title:       normalizeText(item.Title),
		Abstract:    normalizeText(item.Description),
		Categories:  extractCategories(item),
		SourceURL:   absBaseURL + id,
		ArtifactURL: pdfBaseURL + id,
		Comment:     normalizeText(extensionValue(item, "comment")),
	}

	for _, a := range item.Authors {
		if a == nil {
			continue
		}
		if name := strings.TrimSpace(a.Name); name != "" {
			r.Authors = append(r.Authors, name)
		}
	}

	if item.PublishedParsed != nil {
		r.Published = item.PublishedParsed.UTC()
	} else {
		r.Published = p.now().UTC()
	}
	r.Updated = r.Published
	if item.UpdatedParsed != nil && !item.UpdatedParsed.Before(r.Published) {
		r.Updated = item.UpdatedParsed.UTC()
	}

	return r, true
}

func (p Parser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// extractID pulls the arXiv ID from the entry's <id> URL: the path after
// "/abs/" (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041v1"),
// else the final path segment. Version suffixes are kept.
func extractID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	}
	if idx := strings.Index(raw, absPrefix); idx >= 0 {
		return strings.Trim(raw[idx+len(absPrefix):], "/")
	}
	raw = strings.TrimRight(raw, "/")
	if idx := strings.LastIndex(raw, "/"); idx >= 0 {
		return raw[idx+1:]
	}
	return raw
}

// extractCategories returns the primary category first, then the listed
// categories, without duplicates.
func extractCategories(item *gofeed.Item) []string {
	var cats []string
	seen := make(map[string]bool)
	add := func(c string) {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			return
		}
		seen[c] = true
		cats = append(cats, c)
	}

	for _, ext := range item.Extensions[arxivNamespace]["primary_category"] {
		add(ext.Attrs["term"])
	}
	for _, c := range item.Categories {
		add(c)
	}
	return cats
}

func extensionValue(item *gofeed.Item, name string) string {
	exts := item.Extensions[arxivNamespace][name]
	if len(exts) == 0 {
		return ""
	}
	return exts[0].Value
}

// normalizeText composes Unicode to NFC and collapses whitespace runs.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
