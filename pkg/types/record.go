// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-digest pipeline.
// Records flow from the feed through filtering and deduplication into
// enrichment, where each one gains an Analysis.
package types

import "time"

// ErrorMarker is the value every Analysis field carries when enrichment failed.
const ErrorMarker = "Error"

// Record is one harvested paper entry, normalized from the upstream feed.
type Record struct {
	// ID is the arXiv identifier (e.g. "2301.07041v1"). Never empty.
	ID string `json:"id" yaml:"id"`

	// Title is the paper title with whitespace runs collapsed.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in citation order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract with whitespace runs collapsed.
	Abstract string `json:"summary" yaml:"summary"`

	// Categories holds the primary category first, then the remaining
	// listed categories in first-seen order.
	Categories []string `json:"categories" yaml:"categories"`

	// Published is the first submission time.
	Published time.Time `json:"published" yaml:"published"`

	// Updated is the latest revision time. Never before Published.
	Updated time.Time `json:"updated" yaml:"updated"`

	// SourceURL is the abstract page for the paper.
	SourceURL string `json:"abs_url" yaml:"abs_url"`

	// ArtifactURL is the PDF location, derived from ID.
	ArtifactURL string `json:"pdf_url" yaml:"pdf_url"`

	// Comment is the author comment field (page counts, venue), if any.
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Analysis is the structured model output for one record.
type Analysis struct {
	TLDR       string `json:"tldr" yaml:"tldr"`
	Motivation string `json:"motivation" yaml:"motivation"`
	Method     string `json:"method" yaml:"method"`
	Result     string `json:"result" yaml:"result"`
	Conclusion string `json:"conclusion" yaml:"conclusion"`
}

// ErrorAnalysis returns the sentinel analysis recorded for a failed call.
func ErrorAnalysis() Analysis {
	return Analysis{
		TLDR:       ErrorMarker,
		Motivation: ErrorMarker,
		Method:     ErrorMarker,
		Result:     ErrorMarker,
		Conclusion: ErrorMarker,
	}
}

// IsError reports whether a is the failure sentinel.
func (a Analysis) IsError() bool {
	return a == ErrorAnalysis()
}

// Sections returns the narrative fields in report order, keyed by name.
func (a Analysis) Sections() []Section {
	return []Section{
		{Name: "tldr", Text: a.TLDR},
		{Name: "motivation", Text: a.Motivation},
		{Name: "method", Text: a.Method},
		{Name: "result", Text: a.Result},
		{Name: "conclusion", Text: a.Conclusion},
	}
}

// Section is one named narrative field of an Analysis.
type Section struct {
	Name string
	Text string
}

// EnrichedRecord is a Record plus its analysis. Failed enrichment still
// yields an EnrichedRecord, carrying ErrorAnalysis.
type EnrichedRecord struct {
	Record
	Analysis Analysis `json:"AI" yaml:"ai"`
}

// IDs returns the identifiers of records in order.
func IDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}
