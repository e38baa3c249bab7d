package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ella-cms/scribble/internal/core/domain"
	"github.com/ella-cms/scribble/internal/core/ports"
)

const (
	collectionCounters = "counters"
	collectionPrefix   = "resource_"
)

// ResourceRepository stores backend objects, one collection per entity type.
// Ids are int64 sequences kept in the counters collection; the id lives in
// _id and is exposed as "id".
type ResourceRepository struct {
	db       *mongo.Database
	counters *mongo.Collection
}

var _ ports.ResourceStore = (*ResourceRepository)(nil)

func NewResourceRepository(db *mongo.Database) *ResourceRepository {
	return &ResourceRepository{db: db, counters: db.Collection(collectionCounters)}
}

func (r *ResourceRepository) col(typeName string) *mongo.Collection {
	return r.db.Collection(collectionPrefix + typeName)
}

// Save inserts or replaces doc. Documents without an id get the next value
// of the type's counter.
func (r *ResourceRepository) Save(ctx context.Context, typeName string, doc map[string]any) (map[string]any, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := make(bson.M, len(doc))
	for k, v := range doc {
		if k != "id" {
			row[k] = v
		}
	}

	id, ok := doc["id"].(int64)
	if !ok {
		if doc["id"] != nil {
			return nil, false, fmt.Errorf("save %s: id %v is not an integer", typeName, doc["id"])
		}
		next, err := r.nextID(ctx, typeName)
		if err != nil {
			return nil, false, err
		}
		id = next
	} else if err := r.bumpCounter(ctx, typeName, id); err != nil {
		return nil, false, err
	}
	row["_id"] = id

	res, err := r.col(typeName).ReplaceOne(ctx, bson.M{"_id": id}, row, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, false, fmt.Errorf("save %s: %w", typeName, err)
	}
	return fromDocument(row), res.UpsertedCount > 0, nil
}

func (r *ResourceRepository) nextID(ctx context.Context, typeName string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": typeName},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next id for %s: %w", typeName, err)
	}
	return counter.Seq, nil
}

// bumpCounter keeps the sequence ahead of explicitly chosen ids.
func (r *ResourceRepository) bumpCounter(ctx context.Context, typeName string, id int64) error {
	_, err := r.counters.UpdateOne(ctx,
		bson.M{"_id": typeName},
		bson.M{"$max": bson.M{"seq": id}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("bump counter for %s: %w", typeName, err)
	}
	return nil
}

func (r *ResourceRepository) Find(ctx context.Context, typeName string, q ports.ResourceQuery) ([]map[string]any, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := BuildFilter(q.Filters)
	total, err := r.col(typeName).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", typeName, err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetSkip(q.Offset)
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	cur, err := r.col(typeName).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find %s: %w", typeName, err)
	}
	defer cur.Close(ctx)

	out := []map[string]any{}
	for cur.Next(ctx) {
		var row bson.M
		if err := cur.Decode(&row); err != nil {
			return nil, 0, fmt.Errorf("decode %s: %w", typeName, err)
		}
		out = append(out, fromDocument(row))
	}
	if err := cur.Err(); err != nil {
		return nil, 0, fmt.Errorf("find %s: %w", typeName, err)
	}
	return out, total, nil
}

func (r *ResourceRepository) Get(ctx context.Context, typeName string, id int64) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var row bson.M
	err := r.col(typeName).FindOne(ctx, bson.M{"_id": id}).Decode(&row)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s %d: %w", typeName, id, domain.ErrNotFound)
		}
		return nil, err
	}
	return fromDocument(row), nil
}

func (r *ResourceRepository) Delete(ctx context.Context, typeName string, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col(typeName).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s: %w", typeName, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s %d: %w", typeName, id, domain.ErrNotFound)
	}
	return nil
}

// BuildFilter translates exact-match filters into a query document.
func BuildFilter(filters []ports.Filter) bson.M {
	out := bson.M{}
	var and bson.A
	for _, f := range filters {
		key := f.Field
		if key == "id" {
			key = "_id"
		}
		switch f.Mode {
		case ports.MatchRef:
			key += ".id"
		case ports.MatchAll:
			out[key+".id"] = bson.M{"$all": bson.A(f.Values)}
			continue
		}
		for _, v := range f.Values {
			if _, taken := out[key]; taken {
				and = append(and, bson.M{key: v})
				continue
			}
			out[key] = v
		}
	}
	if len(and) > 0 {
		out["$and"] = and
	}
	return out
}

// fromDocument maps _id back to id and driver container types to plain
// maps and slices.
func fromDocument(row bson.M) map[string]any {
	out := plain(row).(map[string]any)
	if id, ok := out["_id"]; ok {
		out["id"] = id
		delete(out, "_id")
	}
	return out
}

func plain(v any) any {
	switch x := v.(type) {
	case bson.M:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = plain(el)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = plain(el)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = plain(el)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = plain(el)
		}
		return out
	case int32:
		return int64(x)
	case primitive.DateTime:
		return x.Time().UTC()
	default:
		return v
	}
}
