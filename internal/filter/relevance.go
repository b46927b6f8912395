// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter selects relevant records and caps how many reach enrichment.
// Both operations are pure: they never modify their input.
package filter

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Filter returns the records that pass policy, in input order.
//
// A record passes when at least one include keyword occurs in its title or
// abstract (or the include list is empty) and no exclude keyword occurs.
// Matching is case-insensitive substring matching over
// title + " " + abstract. With RequireCategoryMatch set, a record must also
// share a category with the policy.
func Filter(records []types.Record, policy types.FilterPolicy) []types.Record {
	m := newMatcher(policy)
	out := make([]types.Record, 0, len(records))
	for _, r := range records {
		if m.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// relevant reports whether a single record passes policy.
func relevant(r types.Record, policy types.FilterPolicy) bool {
	return newMatcher(policy).matches(r)
}

type matcher struct {
	fold       cases.Caser
	include    []string
	exclude    []string
	categories map[string]bool
}

func newMatcher(policy types.FilterPolicy) *matcher {
	m := &matcher{fold: cases.Fold()}
	m.include = m.keywords(policy.IncludeKeywords)
	m.exclude = m.keywords(policy.ExcludeKeywords)
	if policy.RequireCategoryMatch {
		m.categories = make(map[string]bool, len(policy.Categories))
		for _, c := range policy.Categories {
			m.categories[strings.TrimSpace(c)] = true
		}
	}
	return m
}

// keywords folds and trims the list, dropping blanks. A blank keyword would
// match every text.
func (m *matcher) keywords(list []string) []string {
	out := make([]string, 0, len(list))
	for _, k := range list {
		k = strings.TrimSpace(m.fold.String(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

func (m *matcher) matches(r types.Record) bool {
	if m.categories != nil && !m.sharesCategory(r.Categories) {
		return false
	}

	text := m.fold.String(r.Title + " " + r.Abstract)

	if len(m.include) > 0 && !containsAny(text, m.include) {
		return false
	}
	return !containsAny(text, m.exclude)
}

func (m *matcher) sharesCategory(cats []string) bool {
	for _, c := range cats {
		if m.categories[c] {
			return true
		}
	}
	return false
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
