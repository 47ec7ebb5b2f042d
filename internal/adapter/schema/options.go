package schema

import "github.com/vinicius-lino-figueiredo/rackdb/domain"

// WithVirtuals sets computed fields, keyed by their dotted path.
func WithVirtuals(v map[string]domain.Virtual) Option {
	return func(s *Schema) {
		for path, virtual := range v {
			s.virtuals[path] = virtual
		}
	}
}

// WithMethods declares entry methods on the object at path. An empty path
// is the root of the entry.
func WithMethods(path string, m map[string]domain.Method) Option {
	return func(s *Schema) {
		if s.methods[path] == nil {
			s.methods[path] = make(map[string]domain.Method, len(m))
		}
		for name, method := range m {
			s.methods[path][name] = method
		}
	}
}

// WithIDGenerator sets the generator of missing _id values.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(s *Schema) {
		s.idGen = g
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Schema)
