// Package memory is an in-process ports.ResourceStore used by tests and by
// the backend when no database is configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/ella-cms/scribble/internal/core/domain"
	"github.com/ella-cms/scribble/internal/core/ports"
)

type table struct {
	next int64
	rows map[int64]map[string]any
}

// Store keeps one table of documents per type.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

var _ ports.ResourceStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) table(typeName string) *table {
	t, ok := s.tables[typeName]
	if !ok {
		t = &table{rows: make(map[int64]map[string]any)}
		s.tables[typeName] = t
	}
	return t
}

func (s *Store) Save(_ context.Context, typeName string, doc map[string]any) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(typeName)

	row := clone(doc).(map[string]any)
	id, ok := asInt64(row["id"])
	if !ok {
		if row["id"] != nil {
			return nil, false, fmt.Errorf("memory store: id %v is not an integer", row["id"])
		}
		t.next++
		id = t.next
	} else if id > t.next {
		t.next = id
	}
	row["id"] = id

	_, existed := t.rows[id]
	t.rows[id] = row
	return clone(row).(map[string]any), !existed, nil
}

func (s *Store) Find(_ context.Context, typeName string, q ports.ResourceQuery) ([]map[string]any, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[typeName]
	if !ok {
		return []map[string]any{}, 0, nil
	}

	ids := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var matched []map[string]any
	for _, id := range ids {
		row := t.rows[id]
		if matchesAll(row, q.Filters) {
			matched = append(matched, row)
		}
	}

	total := int64(len(matched))
	start := min(q.Offset, total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}

	out := make([]map[string]any, 0, end-start)
	for _, row := range matched[start:end] {
		out = append(out, clone(row).(map[string]any))
	}
	return out, total, nil
}

func (s *Store) Get(_ context.Context, typeName string, id int64) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[typeName]; ok {
		if row, ok := t.rows[id]; ok {
			return clone(row).(map[string]any), nil
		}
	}
	return nil, fmt.Errorf("%s %d: %w", typeName, id, domain.ErrNotFound)
}

func (s *Store) Delete(_ context.Context, typeName string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[typeName]; ok {
		if _, ok := t.rows[id]; ok {
			delete(t.rows, id)
			return nil
		}
	}
	return fmt.Errorf("%s %d: %w", typeName, id, domain.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Matching
// ---------------------------------------------------------------------------

func matchesAll(row map[string]any, filters []ports.Filter) bool {
	for _, f := range filters {
		if !matches(row, f) {
			return false
		}
	}
	return true
}

func matches(row map[string]any, f ports.Filter) bool {
	v, ok := row[f.Field]
	if !ok {
		return false
	}
	switch f.Mode {
	case ports.MatchRef:
		nested, ok := v.(map[string]any)
		if !ok {
			return false
		}
		return allEqual(nested["id"], f.Values)
	case ports.MatchAll:
		elems, ok := v.([]any)
		if !ok {
			return false
		}
		for _, want := range f.Values {
			if !containsID(elems, want) {
				return false
			}
		}
		return true
	default:
		return allEqual(v, f.Values)
	}
}

func allEqual(v any, wants []any) bool {
	for _, w := range wants {
		if !equal(v, w) {
			return false
		}
	}
	return true
}

func containsID(elems []any, want any) bool {
	for _, el := range elems {
		if nested, ok := el.(map[string]any); ok && equal(nested["id"], want) {
			return true
		}
	}
	return false
}

func equal(a, b any) bool {
	ai, aok := asInt64(a)
	bi, bok := asInt64(b)
	if aok && bok {
		return ai == bi
	}
	return reflect.DeepEqual(a, b)
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), true
		}
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
	}
	return 0, false
}

// clone deep-copies the maps and slices of a JSON-shaped value.
func clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = clone(el)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = clone(el)
		}
		return out
	default:
		return v
	}
}
