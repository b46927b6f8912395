// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders enriched records into the daily Markdown digest
// and keeps an index of recent digests.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// topCategories is how many categories the statistics section lists.
const topCategories = 5

// Report is the data behind one digest.
type Report struct {
	Date        string
	GeneratedAt time.Time
	Papers      []types.EnrichedRecord
}

// Stats summarizes a digest.
type Stats struct {
	Total         int
	Failed        int
	TopCategories []CategoryCount
	AvgAuthors    float64
}

// CategoryCount is one row of the category histogram.
type CategoryCount struct {
	Category string
	Count    int
}

// CategoryStats counts category occurrences across papers, most frequent
// first; ties are broken by first appearance. n <= 0 returns every category.
func CategoryStats(papers []types.EnrichedRecord, n int) []CategoryCount {
	counts := make(map[string]int)
	var order []string
	for _, p := range papers {
		for _, c := range p.Categories {
			if counts[c] == 0 {
				order = append(order, c)
			}
			counts[c]++
		}
	}

	out := make([]CategoryCount, len(order))
	for i, c := range order {
		out[i] = CategoryCount{Category: c, Count: counts[c]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Summarize computes the statistics section.
func Summarize(papers []types.EnrichedRecord) Stats {
	s := Stats{Total: len(papers), TopCategories: CategoryStats(papers, topCategories)}
	authors := 0
	for _, p := range papers {
		authors += len(p.Authors)
		if p.Analysis.IsError() {
			s.Failed++
		}
	}
	if len(papers) > 0 {
		s.AvgAuthors = float64(authors) / float64(len(papers))
	}
	return s
}

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"join":  strings.Join,
	"day":   func(t time.Time) string { return t.Format(types.DateLayout) },
	"stamp": func(t time.Time) string { return t.Format("2006-01-02 15:04:05 MST") },
	"title": sectionTitle,
	"cats": func(cs []CategoryCount) string {
		names := make([]string, len(cs))
		for i, c := range cs {
			names[i] = fmt.Sprintf("%s (%d)", c.Category, c.Count)
		}
		return strings.Join(names, ", ")
	},
}).Parse(`# Daily arXiv Digest: {{.Date}}

> {{.Stats.Total}} papers analyzed
>
> Generated {{stamp .GeneratedAt}}

---
{{range .Papers}}
## [{{.Title}}]({{.SourceURL}})

**Authors:** {{join .Authors ", "}}
**Categories:** {{join .Categories ", "}}
**Published:** {{day .Published}}
{{- if .Comment}}
**Comment:** {{.Comment}}
{{- end}}

[Abstract]({{.SourceURL}}) | [PDF]({{.ArtifactURL}})
{{if .Analysis.IsError}}
_Analysis unavailable for this paper._
{{else}}{{range .Analysis.Sections}}
### {{title .Name}}
{{.Text}}
{{end}}{{end}}
---
{{end}}
## Statistics

- **Papers:** {{.Stats.Total}}
{{- if .Stats.Failed}}
- **Analysis failures:** {{.Stats.Failed}}
{{- end}}
- **Top categories:** {{cats .Stats.TopCategories}}
- **Average authors:** {{printf "%.1f" .Stats.AvgAuthors}}
`))

func sectionTitle(name string) string {
	switch name {
	case "tldr":
		return "TL;DR"
	case "motivation":
		return "Motivation"
	case "method":
		return "Method"
	case "result":
		return "Results"
	case "conclusion":
		return "Conclusion"
	default:
		return name
	}
}

// Render writes the digest for r to w.
func Render(w io.Writer, r Report) error {
	data := struct {
		Report
		Stats Stats
	}{Report: r, Stats: Summarize(r.Papers)}
	if err := reportTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering report %s: %w", r.Date, err)
	}
	return nil
}

// WriteFile renders r into path, replacing any previous digest.
func WriteFile(path string, r Report) error {
	var buf strings.Builder
	if err := Render(&buf, r); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing report: %w", err)
	}
	return nil
}
