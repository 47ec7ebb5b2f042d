// Package data contains the default [domain.Document] implementation.
package data

import (
	"fmt"
	"iter"
	"maps"
	"math"
	"math/big"
	"reflect"
	"slices"
	"strings"
	"time"

	goreflect "github.com/goccy/go-reflect"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

// TagName is the struct tag read when converting structs into documents.
const TagName = "rackdb"

var (
	timeTyp   = goreflect.TypeOf(*new(time.Time))
	bigIntTyp = goreflect.TypeOf(*new(big.Int))
)

// M implements domain.Document by using a hashed map. Duplicates replace old
// values.
type M map[string]any

// NewDocument returns a new instance of [domain.Document]. Maps, structs,
// slices and documents are copied recursively, so the result never shares
// mutable state with the input.
func NewDocument(in any) (domain.Document, error) {
	if in == nil {
		return M{}, nil
	}
	v, err := normalize(in)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return M{}, nil
	}
	doc, ok := v.(domain.Document)
	if !ok {
		return nil, fmt.Errorf("expected map or struct, got %T", in)
	}
	return doc, nil
}

// Normalize converts any value into the representation used inside
// documents: nested maps and structs become [M] and slices become []any.
func Normalize(in any) (any, error) {
	return normalize(in)
}

func normalize(in any) (any, error) {
	switch t := in.(type) {
	case nil:
		return nil, nil
	case string, bool, int, int8, int16, int32, int64, uint, uint8,
		uint16, uint32, uint64, float32, float64, time.Time,
		time.Duration, *big.Int:
		return t, nil
	case M:
		return copyMap(t)
	case map[string]any:
		return copyMap(t)
	case []any:
		return copyList(t)
	case domain.Document:
		res := make(M, t.Len())
		for k, v := range t.Iter() {
			var err error
			if res[k], err = normalize(v); err != nil {
				return nil, err
			}
		}
		return res, nil
	case domain.Getter:
		return t, nil
	}
	return parseReflect(goreflect.ValueNoEscapeOf(in))
}

func copyMap[T ~map[string]any](m T) (domain.Document, error) {
	res := make(M, len(m))
	for k, v := range m {
		var err error
		if res[k], err = normalize(v); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func copyList(l []any) ([]any, error) {
	res := make([]any, len(l))
	for n, v := range l {
		var err error
		if res[n], err = normalize(v); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func parseReflect(r goreflect.Value) (any, error) {
	for r.Kind() == reflect.Pointer || r.Kind() == goreflect.Interface {
		if r.Kind() == reflect.Pointer && r.Type().Elem() == bigIntTyp && !r.IsNil() {
			return r.Interface(), nil
		}
		r = r.Elem()
	}
	switch r.Kind() {
	case goreflect.Invalid:
		return nil, nil
	case goreflect.Slice:
		if r.IsNil() {
			return nil, nil
		}
		fallthrough
	case goreflect.Array:
		return parseList(r)
	case goreflect.Struct:
		if r.Type() == timeTyp {
			return r.Interface(), nil
		}
		return parseStruct(r)
	case goreflect.Map:
		if r.IsNil() {
			return nil, nil
		}
		return parseMapReflect(r)
	case goreflect.Chan, goreflect.Func:
		if r.IsNil() {
			return nil, nil
		}
		return r.Interface(), nil
	default:
		return r.Interface(), nil
	}
}

func parseStruct(r goreflect.Value) (domain.Document, error) {
	typ := r.Type()
	numField := r.NumField()

	res := make(M, numField)

	for n := range numField {
		field := typ.Field(n)
		if field.PkgPath != "" {
			continue
		}

		fieldInfo, err := parseField(r.Field(n), field)
		if err != nil {
			return nil, err
		}

		if fieldInfo == nil {
			continue
		}
		res[fieldInfo.name] = fieldInfo.value
	}
	return res, nil
}

func parseMapReflect(v goreflect.Value) (domain.Document, error) {
	res := make(M, v.Len())
	for _, k := range v.MapKeys() {
		key := fmt.Sprint(k.Interface())
		var err error
		if res[key], err = normalize(v.MapIndex(k).Interface()); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type field struct {
	name  string
	value any
}

func parseField(r goreflect.Value, typ goreflect.StructField) (*field, error) {
	name := typ.Name
	var tagSegments []string
	if tag, ok := typ.Tag.Lookup(TagName); ok {
		if tag == "-" {
			return nil, nil
		}
		tagSegments = strings.Split(tag, ",")
		if tagSegments[0] != "" {
			name = tagSegments[0]
		}
		tagSegments = tagSegments[1:]
	}
	if slices.Contains(tagSegments, "omitempty") && isNullable(typ.Type) && r.IsNil() {
		return nil, nil
	}
	if slices.Contains(tagSegments, "omitzero") && r.IsZero() {
		return nil, nil
	}

	value, err := normalize(r.Interface())
	if err != nil {
		return nil, err
	}

	return &field{name: name, value: value}, nil
}

func parseList(r goreflect.Value) ([]any, error) {
	length := r.Len()
	res := make([]any, length)
	for i := range length {
		var err error
		if res[i], err = normalize(r.Index(i).Interface()); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func isNullable(t goreflect.Type) bool {
	k := t.Kind()
	return k == reflect.Pointer ||
		k == reflect.Slice ||
		k == reflect.Map ||
		k == reflect.Interface ||
		k == reflect.Func ||
		k == reflect.Chan
}

// AsInt64 converts integral numbers of any type into int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		if float32(int64(n)) != n {
			return 0, false
		}
		return int64(n), true
	case float64:
		if float64(int64(n)) != n {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// ID implements domain.Document
func (d M) ID() any {
	return d["_id"]
}

// Get implements domain.Document
func (d M) Get(key string) any {
	return d[key]
}

// Set implements domain.Document
func (d M) Set(key string, value any) {
	d[key] = value
}

// Unset implements domain.Document
func (d M) Unset(key string) {
	delete(d, key)
}

// D implements domain.Document
func (d M) D(key string) domain.Document {
	if doc, ok := d[key].(domain.Document); ok {
		return doc
	}
	return nil
}

// Iter implements domain.Document.
func (d M) Iter() iter.Seq2[string, any] {
	return maps.All(d)
}

// Keys implements domain.Document.
func (d M) Keys() iter.Seq[string] {
	return maps.Keys(d)
}

// Len implements domain.Document.
func (d M) Len() int {
	return len(d)
}

// Values implements domain.Document.
func (d M) Values() iter.Seq[any] {
	return maps.Values(d)
}

// Has implements domain.Document.
func (d M) Has(key string) bool {
	_, has := d[key]
	return has
}
