// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package feed

import (
	"fmt"
	"strings"
	"time"
)

// Query describes one harvest: which categories and how far back.
type Query struct {
	Categories  []string
	WindowStart time.Time

	// MaxResults caps the records collected across pages. Zero uses the
	// fetcher's configured limit.
	MaxResults int
}

// WindowStart returns the lower bound of the submission window for a run
// on target that looks back lookbackDays days.
func WindowStart(target time.Time, lookbackDays int) time.Time {
	return target.AddDate(0, 0, -lookbackDays)
}

// BuildSearchQuery returns the arXiv search_query expression: an OR of the
// category predicates AND a submittedDate lower bound. It returns "" when
// no category is given.
func BuildSearchQuery(categories []string, windowStart time.Time) string {
	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		parts = append(parts, "cat:"+c)
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("(%s) AND submittedDate:[%s* TO *]",
		strings.Join(parts, " OR "), windowStart.Format("20060102"))
}
