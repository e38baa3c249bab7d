package field

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ella-cms/scribble/internal/core/domain"
)

// WireTimeFormat is how datetime values travel: ISO-8601, UTC, millisecond precision.
const WireTimeFormat = "2006-01-02T15:04:05.000Z07:00"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

var validate = validator.New()

// Built-in field types.
var (
	TextType = MustDefineType(TypeSpec{
		Kind:    KindText,
		Default: "",
	})

	BoolType = MustDefineType(TypeSpec{
		Kind: KindBool,
		Validate: func(_ *Declaration, raw any) (any, error) {
			return Truthy(raw), nil
		},
	})

	IDType = MustDefineType(TypeSpec{
		Kind:     KindID,
		Validate: func(_ *Declaration, raw any) (any, error) { return NormalizeID(raw) },
	})

	PasswordType = MustDefineType(TypeSpec{
		Kind:    KindPassword,
		Default: "",
	})

	JSONType = MustDefineType(TypeSpec{
		Kind:     KindJSON,
		Validate: validateJSON,
	})

	DatetimeType = MustDefineType(TypeSpec{
		Kind:     KindDatetime,
		Validate: validateDatetime,
		Serialize: func(v any) any {
			if t, ok := v.(time.Time); ok {
				return t.UTC().Format(WireTimeFormat)
			}
			return v
		},
	})

	ReferenceType = MustDefineType(TypeSpec{
		Kind:      KindReference,
		Declare:   declareTarget,
		Validate:  validateReference,
		Serialize: serializeNested,
	})

	CollectionType = MustDefineType(TypeSpec{
		Kind:     KindCollection,
		Declare:  declareTarget,
		Validate: validateCollection,
		Serialize: func(v any) any {
			elems, ok := v.([]any)
			if !ok {
				return v
			}
			out := make([]any, len(elems))
			for i, el := range elems {
				out[i] = serializeNested(el)
			}
			return out
		},
	})

	EmailType = MustDefineType(TypeSpec{
		Kind: KindEmail,
		Validate: func(_ *Declaration, raw any) (any, error) {
			return validateTag(raw, "email")
		},
	})

	URLType = MustDefineType(TypeSpec{
		Kind: KindURL,
		Validate: func(_ *Declaration, raw any) (any, error) {
			if s, ok := raw.(string); ok && strings.HasPrefix(s, "www.") {
				raw = "http://" + s
			}
			return validateTag(raw, "url")
		},
	})
)

func Text() *Declaration     { return TextType.MustDeclare(nil) }
func Bool() *Declaration     { return BoolType.MustDeclare(nil) }
func ID() *Declaration       { return IDType.MustDeclare(nil) }
func Password() *Declaration { return PasswordType.MustDeclare(nil) }
func JSON() *Declaration     { return JSONType.MustDeclare(nil) }
func Datetime() *Declaration { return DatetimeType.MustDeclare(nil) }
func Email() *Declaration    { return EmailType.MustDeclare(nil) }
func URL() *Declaration      { return URLType.MustDeclare(nil) }

// Reference declares a field holding one entity of type t. A nil t accepts any value.
func Reference(t Target) *Declaration {
	if t == nil {
		return ReferenceType.MustDeclare(nil)
	}
	return ReferenceType.MustDeclare(t)
}

// Collection declares a field holding an ordered sequence of entities of type t.
// A nil t accepts any elements.
func Collection(t Target) *Declaration {
	if t == nil {
		return CollectionType.MustDeclare(nil)
	}
	return CollectionType.MustDeclare(t)
}

func declareTarget(param any) (any, error) {
	if param == nil {
		return nil, nil
	}
	t, ok := param.(Target)
	if !ok {
		return nil, fmt.Errorf("can only restrict with an entity type, got %T: %w", param, domain.ErrSchemaDefinition)
	}
	return t, nil
}

func validateReference(d *Declaration, raw any) (any, error) {
	target := d.Target()
	if target == nil || raw == nil {
		return raw, nil
	}
	return target.Coerce(raw)
}

func validateCollection(d *Declaration, raw any) (any, error) {
	elems := toSlice(raw)
	target := d.Target()
	if target == nil {
		return elems, nil
	}
	for i, el := range elems {
		e, err := target.Coerce(el)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		elems[i] = e
	}
	return elems, nil
}

func serializeNested(v any) any {
	if e, ok := v.(Entity); ok {
		return e.Values()
	}
	return v
}

// toSlice copies any slice or array into a fresh []any and wraps a single
// value into a one-element slice.
func toSlice(raw any) []any {
	if raw == nil {
		return []any{}
	}
	if s, ok := raw.([]any); ok {
		return append([]any(nil), s...)
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{raw}
}

func validateJSON(_ *Declaration, raw any) (any, error) {
	var s string
	switch x := raw.(type) {
	case nil:
		return "{}", nil
	case string:
		s = x
	case json.RawMessage:
		s = string(x)
	default:
		return nil, fmt.Errorf("json field only accepts JSON strings, got %T", raw)
	}
	if !json.Valid([]byte(s)) {
		return nil, errors.New("malformed JSON text")
	}
	return s, nil
}

func validateTag(raw any, tag string) (any, error) {
	if raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", raw)
	}
	if s == "" {
		return s, nil
	}
	if err := validate.Var(s, tag); err != nil {
		return nil, fmt.Errorf("%q is not a valid %s", s, tag)
	}
	return s, nil
}

// validateDatetime leaves nil unset; backends send null for empty datetimes.
func validateDatetime(_ *Declaration, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	return ParseTime(raw)
}

// ParseTime accepts a time.Time, epoch milliseconds or a date string.
func ParseTime(raw any) (time.Time, error) {
	switch x := raw.(type) {
	case time.Time:
		return x, nil
	case *time.Time:
		if x != nil {
			return *x, nil
		}
	case json.Number:
		if ms, err := x.Int64(); err == nil {
			return time.UnixMilli(ms), nil
		}
		if f, err := x.Float64(); err == nil {
			return time.UnixMilli(int64(f)), nil
		}
		return parseTimeString(x.String())
	case string:
		return parseTimeString(x)
	case float64:
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			return time.UnixMilli(int64(x)), nil
		}
	case float32:
		return time.UnixMilli(int64(x)), nil
	default:
		rv := reflect.ValueOf(raw)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.UnixMilli(rv.Int()), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.UnixMilli(int64(rv.Uint())), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %v", raw)
}

func parseTimeString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// NormalizeID maps the numeric representations an id can arrive in (Go
// integers, integral floats, json.Number) to int64 so ids from JSON and from
// code compare equal. Strings pass through.
func NormalizeID(raw any) (any, error) {
	switch x := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		return x.String(), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("id must be integral, got %v", x)
		}
		return int64(x), nil
	case float32:
		return NormalizeID(float64(x))
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("id %d out of range", u)
		}
		return int64(u), nil
	}
	return nil, fmt.Errorf("id must be a number or string, got %T", raw)
}
