// Package schema parses raw input into entries and exposes typed access to
// them.
package schema

import (
	"fmt"
	"maps"
	"math"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/idgenerator"
)

// Reserved field names.
const (
	IDField      = "_id"
	VersionField = "_v"
)

// Schema implements [domain.Schema].
type Schema struct {
	fields   map[string]domain.Field
	flat     map[string]domain.Field
	paths    []string
	virtuals map[string]domain.Virtual
	methods  map[string]map[string]domain.Method
	idGen    domain.IDGenerator
	fn       domain.FieldNavigator
}

// NewSchema returns a [domain.Schema] for the given top level fields.
func NewSchema(fields map[string]domain.Field, opts ...Option) domain.Schema {
	s := &Schema{
		fields:   fields,
		flat:     make(map[string]domain.Field),
		virtuals: make(map[string]domain.Virtual),
		methods:  make(map[string]map[string]domain.Method),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.idGen == nil {
		s.idGen = idgenerator.NewObjectID()
	}
	s.fn = fieldnavigator.NewFieldNavigator(data.NewDocument)
	s.index("", fields)
	slices.Sort(s.paths)
	return s
}

func (s *Schema) index(prefix string, fields map[string]domain.Field) {
	for name, f := range fields {
		p := join(prefix, name)
		s.flat[p] = f
		s.paths = append(s.paths, p)
		if len(f.Fields) > 0 {
			s.index(p, f.Fields)
		}
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func typeOf(f domain.Field) domain.FieldType {
	if f.Type == "" {
		if len(f.Fields) > 0 {
			return domain.TypeObject
		}
		return domain.TypeAny
	}
	return f.Type
}

// Paths implements [domain.Schema].
func (s *Schema) Paths() []string {
	return slices.Clone(s.paths)
}

// Field implements [domain.Schema].
func (s *Schema) Field(path string) (domain.Field, bool) {
	f, ok := s.flat[path]
	return f, ok
}

// Methods implements [domain.Schema].
func (s *Schema) Methods(path string) map[string]domain.Method {
	return s.methods[path]
}

// Model implements [domain.Schema].
func (s *Schema) Model(doc domain.Document) domain.Model {
	return &Model{schema: s, root: doc, emitter: &emitter{}}
}

// Parse implements [domain.Schema]. The input is copied, so the result never
// shares state with it. Reserved fields found in the input are kept, and
// [domain.WithParseIdentity] fills the missing ones.
func (s *Schema) Parse(input any, opts ...domain.ParseOption) (domain.Document, error) {
	var options domain.ParseOptions
	for _, opt := range opts {
		opt(&options)
	}

	in, err := data.NewDocument(input)
	if err != nil {
		return nil, domain.ErrValidation{Reason: err.Error()}
	}

	out, err := s.parseObject("", s.fields, in)
	if err != nil {
		return nil, err
	}
	if err := s.identity(in, out, options.Identity); err != nil {
		return nil, err
	}
	if options.Virtuals {
		s.applyVirtuals(out)
	}
	return out, nil
}

func (s *Schema) parseObject(prefix string, fields map[string]domain.Field, in domain.Document) (data.M, error) {
	var setters []string
	for _, k := range slices.Sorted(in.Keys()) {
		if prefix == "" && (k == IDField || k == VersionField) {
			continue
		}
		if _, ok := fields[k]; ok {
			continue
		}
		p := join(prefix, k)
		if _, ok := s.virtuals[p]; ok {
			setters = append(setters, k)
			continue
		}
		return nil, domain.ErrValidation{Path: p, Reason: "unknown field"}
	}

	out := make(data.M, len(fields))
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		val, set, err := s.parseValue(join(prefix, name), fields[name], in.Get(name), in.Has(name))
		if err != nil {
			return nil, err
		}
		if set {
			out[name] = val
		}
	}

	for _, k := range setters {
		p := join(prefix, k)
		v := s.virtuals[p]
		if v.Set == nil {
			continue
		}
		if err := v.Set(out, in.Get(k)); err != nil {
			return nil, domain.ErrValidation{Path: p, Reason: err.Error()}
		}
	}
	return out, nil
}

// parseValue returns the value to store for a field and whether it should be
// stored at all.
func (s *Schema) parseValue(path string, f domain.Field, v any, present bool) (any, bool, error) {
	if !present {
		switch {
		case f.Default != nil:
			def, err := s.defaultValue(f.Default)
			if err != nil {
				return nil, false, domain.ErrValidation{Path: path, Reason: err.Error()}
			}
			v = def
		case f.Required:
			return nil, false, domain.ErrValidation{Path: path, Reason: "required"}
		default:
			return nil, false, nil
		}
	}

	if v == nil {
		if f.Required {
			return nil, false, domain.ErrValidation{Path: path, Reason: "required"}
		}
		return nil, true, nil
	}

	if f.Rack != "" {
		if doc, ok := v.(domain.Document); ok {
			if v = doc.ID(); v == nil {
				return nil, false, domain.ErrValidation{Path: path, Reason: "reference without _id"}
			}
		}
	}

	v, err := s.cast(path, f, v)
	if err != nil {
		return nil, false, err
	}

	if f.Validate != nil {
		if err := f.Validate(v); err != nil {
			return nil, false, domain.ErrValidation{Path: path, Reason: err.Error()}
		}
	}
	return v, true, nil
}

func (s *Schema) defaultValue(def any) (any, error) {
	if fn, ok := def.(func() any); ok {
		def = fn()
	}
	return data.Normalize(def)
}

func (s *Schema) cast(path string, f domain.Field, v any) (any, error) {
	typ := typeOf(f)
	invalid := domain.ErrValidation{Path: path, Reason: fmt.Sprintf("expected %s, got %T", typ, v)}

	switch typ {
	case domain.TypeAny:
		return v, nil
	case domain.TypeString:
		if _, ok := v.(string); !ok {
			return nil, invalid
		}
	case domain.TypeID:
		if id, ok := v.(string); !ok || id == "" {
			return nil, invalid
		}
	case domain.TypeNumber:
		if !isNumber(v) {
			return nil, invalid
		}
		if isNaN(v) {
			return nil, domain.ErrValidation{Path: path, Reason: "expected number, got NaN"}
		}
	case domain.TypeBoolean:
		if _, ok := v.(bool); !ok {
			return nil, invalid
		}
	case domain.TypeDate:
		return s.castDate(v, invalid)
	case domain.TypeArray:
		arr, ok := v.([]any)
		if !ok {
			return nil, invalid
		}
		if f.Items == nil {
			return arr, nil
		}
		res := make([]any, len(arr))
		for n, item := range arr {
			val, _, err := s.parseValue(fmt.Sprintf("%s.%d", path, n), *f.Items, item, true)
			if err != nil {
				return nil, err
			}
			res[n] = val
		}
		return res, nil
	case domain.TypeObject:
		doc, ok := v.(domain.Document)
		if !ok {
			return nil, invalid
		}
		if len(f.Fields) == 0 {
			return doc, nil
		}
		return s.parseObject(path, f.Fields, doc)
	default:
		return nil, domain.ErrValidation{Path: path, Reason: fmt.Sprintf("unknown type %q", typ)}
	}
	return v, nil
}

func (s *Schema) castDate(v any, invalid error) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, invalid
		}
		return parsed, nil
	}
	return nil, invalid
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32,
		uint64, float32, float64, *big.Int:
		return true
	}
	return false
}

func isNaN(v any) bool {
	switch n := v.(type) {
	case float32:
		return math.IsNaN(float64(n))
	case float64:
		return math.IsNaN(n)
	}
	return false
}

func (s *Schema) identity(in domain.Document, out data.M, fill bool) error {
	if id := in.Get(IDField); id != nil {
		if _, ok := id.(domain.Document); ok {
			return domain.ErrValidation{Path: IDField, Reason: "must be a scalar"}
		}
		out[IDField] = id
	} else if fill {
		id, err := s.idGen.GenerateID()
		if err != nil {
			return fmt.Errorf("generating id: %w", err)
		}
		out[IDField] = id
	}

	if in.Has(VersionField) {
		v, ok := data.AsInt64(in.Get(VersionField))
		if !ok || v < 1 {
			return domain.ErrValidation{Path: VersionField, Reason: "must be a positive integer"}
		}
		out[VersionField] = v
	} else if fill {
		out[VersionField] = int64(1)
	}
	return nil
}

// applyVirtuals stores the value of every virtual getter in doc. Getters
// receive the object holding the virtual.
func (s *Schema) applyVirtuals(doc domain.Document) {
	for _, p := range slices.Sorted(maps.Keys(s.virtuals)) {
		v := s.virtuals[p]
		if v.Get == nil {
			continue
		}
		parent, last, ok := s.parent(doc, p)
		if !ok {
			continue
		}
		parent.Set(last, v.Get(parent))
	}
}

// parent returns the object holding path in doc.
func (s *Schema) parent(doc domain.Document, path string) (domain.Document, string, bool) {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return doc, path, true
	}
	addr, err := s.fn.GetAddress(path[:i])
	if err != nil {
		return nil, "", false
	}
	gss, _, err := s.fn.GetField(doc, addr...)
	if err != nil || len(gss) != 1 {
		return nil, "", false
	}
	val, _ := gss[0].Get()
	parent, ok := val.(domain.Document)
	return parent, path[i+1:], ok
}
