package mongo

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ella-cms/scribble/internal/core/ports"
)

func TestBuildFilter(t *testing.T) {
	cases := []struct {
		name    string
		filters []ports.Filter
		want    bson.M
	}{
		{
			name: "empty",
			want: bson.M{},
		},
		{
			name:    "scalar and id",
			filters: []ports.Filter{{Field: "title", Values: []any{"a"}}, {Field: "id", Values: []any{int64(3)}}},
			want:    bson.M{"title": "a", "_id": int64(3)},
		},
		{
			name:    "reference",
			filters: []ports.Filter{{Field: "category", Mode: ports.MatchRef, Values: []any{int64(2)}}},
			want:    bson.M{"category.id": int64(2)},
		},
		{
			name:    "collection",
			filters: []ports.Filter{{Field: "authors", Mode: ports.MatchAll, Values: []any{int64(1), int64(2)}}},
			want:    bson.M{"authors.id": bson.M{"$all": bson.A{int64(1), int64(2)}}},
		},
		{
			name:    "repeated scalar",
			filters: []ports.Filter{{Field: "slug", Values: []any{"a", "b"}}},
			want:    bson.M{"slug": "a", "$and": bson.A{bson.M{"slug": "b"}}},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := BuildFilter(c.filters); !reflect.DeepEqual(got, c.want) {
				t.Fatalf("BuildFilter() = %#v, want %#v", got, c.want)
			}
		})
	}
}

func TestFromDocument(t *testing.T) {
	row := bson.M{
		"_id":      int64(4),
		"title":    "a",
		"count":    int32(2),
		"category": bson.M{"id": int64(1)},
		"authors":  bson.A{bson.D{{Key: "id", Value: int64(2)}}},
	}

	got := fromDocument(row)
	want := map[string]any{
		"id":       int64(4),
		"title":    "a",
		"count":    int64(2),
		"category": map[string]any{"id": int64(1)},
		"authors":  []any{map[string]any{"id": int64(2)}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fromDocument() = %#v, want %#v", got, want)
	}
}
