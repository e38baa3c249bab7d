package service

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ella-cms/scribble/internal/core/entity"
)

// FilterValues encodes the set fields of e as exact-match list parameters.
//
// Scalars go as text. A nested entity goes as its id; a collection repeats
// the parameter once per element id. Nested entities without an id cannot
// be matched by the backend and are left out.
func FilterValues(e *entity.Entity, log zerolog.Logger) url.Values {
	q := url.Values{}
	for _, snap := range e.FieldsArray() {
		switch v := snap.Value.(type) {
		case nil:
		case *entity.Entity:
			if id, ok := v.ID(); ok {
				q.Add(snap.Name, formatScalar(id))
			} else {
				log.Debug().Str("type", e.TypeName()).Str("field", snap.Name).Msg("unsaved reference left out of filter")
			}
		case []any:
			for i, el := range v {
				n, ok := el.(*entity.Entity)
				if !ok {
					q.Add(snap.Name, formatScalar(el))
					continue
				}
				if id, ok := n.ID(); ok {
					q.Add(snap.Name, formatScalar(id))
				} else {
					log.Debug().Str("type", e.TypeName()).Str("field", snap.Name).Int("index", i).Msg("unsaved element left out of filter")
				}
			}
		default:
			if wire := snap.Field.DBValue(); wire != nil {
				q.Add(snap.Name, formatScalar(wire))
			}
		}
	}
	return q
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}
