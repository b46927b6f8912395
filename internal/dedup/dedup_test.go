// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/paper-digest/pkg/types"
)

type idSet map[string]bool

func (s idSet) Contains(id string) bool { return s[id] }

func records(ids ...string) []types.Record {
	out := make([]types.Record, len(ids))
	for i, id := range ids {
		out[i] = types.Record{ID: id, Title: "paper " + id}
	}
	return out
}

func TestDedupe_IntraBatchAndHistory(t *testing.T) {
	res := Dedupe(records("a", "b", "c", "a", "d"), idSet{"a": true, "b": true})

	assert.Equal(t, []string{"a", "b", "c", "d"}, types.IDs(res.Unique))
	assert.Equal(t, []string{"c", "d"}, types.IDs(res.New))
	assert.Equal(t, 1, res.DuplicatesRemoved)
}

func TestDedupe_FirstOccurrenceWins(t *testing.T) {
	in := []types.Record{
		{ID: "x", Title: "first"},
		{ID: "x", Title: "second"},
	}
	res := Dedupe(in, nil)
	assert.Len(t, res.Unique, 1)
	assert.Equal(t, "first", res.Unique[0].Title)
}

func TestDedupe_Idempotent(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
	}{
		{"no repeats", []string{"a", "b", "c"}},
		{"repeats", []string{"c", "a", "c", "b", "a"}},
		{"single", []string{"a"}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := Dedupe(records(tt.ids...), nil)
			twice := Dedupe(once.Unique, nil)
			assert.Equal(t, once.Unique, twice.Unique)
			assert.Zero(t, twice.DuplicatesRemoved)
		})
	}
}

func TestDedupe_NewIsSubsequenceOfUnique(t *testing.T) {
	res := Dedupe(records("e", "d", "c", "b", "a"), idSet{"d": true, "b": true})

	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, types.IDs(res.Unique))
	assert.Equal(t, []string{"e", "c", "a"}, types.IDs(res.New))
}

func TestDedupe_NilHistoryEverythingNew(t *testing.T) {
	res := Dedupe(records("a", "b"), nil)
	assert.Equal(t, res.Unique, res.New)
}

func TestDedupe_AllSeen(t *testing.T) {
	res := Dedupe(records("a", "b"), idSet{"a": true, "b": true})
	assert.Len(t, res.Unique, 2)
	assert.Empty(t, res.New)
}
