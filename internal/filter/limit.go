// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"sort"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Limit caps records at max. When there are more, the newest by Published
// are kept, newest first; ties keep their input order. A list within the
// cap is returned as a copy in its original order. max <= 0 yields none.
func Limit(records []types.Record, max int) []types.Record {
	if max <= 0 {
		return []types.Record{}
	}
	out := make([]types.Record, len(records))
	copy(out, records)
	if len(out) <= max {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Published.After(out[j].Published)
	})
	return out[:max]
}
