package ports

import "context"

// MatchMode selects how a Filter compares against a stored field.
type MatchMode int

const (
	// MatchEqual compares a scalar field.
	MatchEqual MatchMode = iota
	// MatchRef compares the id of a nested object.
	MatchRef
	// MatchAll requires every value among the ids of a nested array.
	MatchAll
)

// Filter is one exact-match condition. Values are already normalised to
// the stored representation (int64 ids, bools, wire strings).
type Filter struct {
	Field  string
	Mode   MatchMode
	Values []any
}

// ResourceQuery selects stored objects of one type. Limit 0 means all.
type ResourceQuery struct {
	Filters []Filter
	Limit   int64
	Offset  int64
}

// ResourceStore persists backend objects as documents keyed by an int64 id.
type ResourceStore interface {
	// Save stores doc. A doc without an id gets the next id of its type; a doc
	// with an id replaces the stored one. created reports which happened.
	Save(ctx context.Context, typeName string, doc map[string]any) (saved map[string]any, created bool, err error)
	Find(ctx context.Context, typeName string, q ResourceQuery) (docs []map[string]any, total int64, err error)
	Get(ctx context.Context, typeName string, id int64) (map[string]any, error)
	Delete(ctx context.Context, typeName string, id int64) error
}
