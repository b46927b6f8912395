// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup removes repeated records within a batch and separates the
// records never seen in prior runs.
package dedup

import "github.com/pdiddy/paper-digest/pkg/types"

// Result holds the outcome of Dedupe.
type Result struct {
	// Unique holds the first occurrence of every id, in input order.
	Unique []types.Record

	// New holds the members of Unique whose ids are absent from history.
	New []types.Record

	// DuplicatesRemoved counts intra-batch repeats dropped from Unique.
	DuplicatesRemoved int
}

// Seen reports whether an id was recorded by an earlier run.
type Seen interface {
	Contains(id string) bool
}

// Dedupe keeps the first occurrence of each id and marks which unique
// records are new relative to history. A nil history treats every record as
// new. Dedupe is idempotent: feeding Unique back in returns it unchanged.
func Dedupe(records []types.Record, history Seen) Result {
	res := Result{
		Unique: make([]types.Record, 0, len(records)),
		New:    make([]types.Record, 0, len(records)),
	}
	seen := make(map[string]bool, len(records))

	for _, r := range records {
		if seen[r.ID] {
			res.DuplicatesRemoved++
			continue
		}
		seen[r.ID] = true
		res.Unique = append(res.Unique, r)
		if history == nil || !history.Contains(r.ID) {
			res.New = append(res.New, r)
		}
	}
	return res
}
