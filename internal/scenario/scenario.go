// Package scenario loads and runs scripted rack sessions described in YAML.
package scenario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/dolmen-go/contextio"
	"gopkg.in/yaml.v3"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

// Step operations.
const (
	OpCreate = "create"
	OpRead   = "read"
	OpUpdate = "update"
	OpDelete = "delete"
	OpList   = "list"
)

var operations = []string{OpCreate, OpRead, OpUpdate, OpDelete, OpList}

var fieldTypes = []domain.FieldType{
	"",
	domain.TypeAny,
	domain.TypeString,
	domain.TypeNumber,
	domain.TypeBoolean,
	domain.TypeDate,
	domain.TypeArray,
	domain.TypeObject,
	domain.TypeID,
}

// Scenario declares racks and the steps run against them, in order.
type Scenario struct {
	Name  string `yaml:"name"`
	Racks []Rack `yaml:"racks"`
	Steps []Step `yaml:"steps"`
}

// Rack declares a rack and its fields.
type Rack struct {
	Name   string           `yaml:"name"`
	Fields map[string]Field `yaml:"fields"`
}

// Field declares a schema field.
type Field struct {
	Type     string           `yaml:"type"`
	Required bool             `yaml:"required"`
	Default  any              `yaml:"default"`
	Unique   any              `yaml:"unique"`
	Rack     string           `yaml:"rack"`
	Fields   map[string]Field `yaml:"fields"`
	Items    *Field           `yaml:"items"`
}

// Step is one rack operation.
type Step struct {
	Op    string         `yaml:"op"`
	Rack  string         `yaml:"rack"`
	ID    any            `yaml:"id"`
	Entry map[string]any `yaml:"entry"`
	Query map[string]any `yaml:"query"`
	Patch map[string]any `yaml:"patch"`
	Sort  []Sort         `yaml:"sort"`
	Skip  int64          `yaml:"skip"`
	Limit int64          `yaml:"limit"`

	// Expect is matched against every field it names in the result. For
	// operations returning many entries it is matched against the first.
	Expect map[string]any `yaml:"expect"`
	// ExpectCount is the number of entries the step must return.
	ExpectCount *int `yaml:"expectCount"`
	// ExpectError is a substring of the error the step must fail with.
	ExpectError string `yaml:"expectError"`
}

// Sort is one sort key of a list step.
type Sort struct {
	Key   string `yaml:"key"`
	Order int64  `yaml:"order"`
}

// Load reads the scenario file at path.
func Load(ctx context.Context, path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	defer f.Close()
	return Read(ctx, f)
}

// Read decodes and validates a scenario. Unknown keys are rejected.
func Read(ctx context.Context, r io.Reader) (*Scenario, error) {
	raw, err := io.ReadAll(contextio.NewReader(ctx, r))
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// Validate checks the scenario without running it. Every problem found is
// reported.
func (sc *Scenario) Validate() error {
	var errs []error
	if sc.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(sc.Racks) == 0 {
		errs = append(errs, errors.New("racks list is required and must be non-empty"))
	}

	declared := make(map[string]bool, len(sc.Racks))
	for _, r := range sc.Racks {
		if r.Name == "" {
			errs = append(errs, errors.New("rack name is required"))
			continue
		}
		if declared[r.Name] {
			errs = append(errs, fmt.Errorf("rack %s declared twice", r.Name))
		}
		declared[r.Name] = true
	}
	for _, r := range sc.Racks {
		for name, f := range r.Fields {
			errs = append(errs, f.validate(r.Name+"."+name, declared)...)
		}
	}

	for n, st := range sc.Steps {
		if !slices.Contains(operations, st.Op) {
			errs = append(errs, fmt.Errorf("step %d: unknown op %q", n+1, st.Op))
		}
		if !declared[st.Rack] {
			errs = append(errs, fmt.Errorf("step %d: unknown rack %q", n+1, st.Rack))
		}
		if st.Op == OpRead && st.ID == nil {
			errs = append(errs, fmt.Errorf("step %d: %s needs an id", n+1, st.Op))
		}
		if st.Op == OpUpdate && st.Patch == nil {
			errs = append(errs, fmt.Errorf("step %d: update needs a patch", n+1))
		}
	}
	return errors.Join(errs...)
}

func (f Field) validate(path string, racks map[string]bool) []error {
	var errs []error
	if !slices.Contains(fieldTypes, domain.FieldType(f.Type)) {
		errs = append(errs, fmt.Errorf("%s: unknown type %q", path, f.Type))
	}
	if f.Rack != "" && !racks[f.Rack] {
		errs = append(errs, fmt.Errorf("%s: references unknown rack %q", path, f.Rack))
	}
	switch f.Unique.(type) {
	case nil, bool, string:
	default:
		errs = append(errs, fmt.Errorf("%s: unique must be a bool or a key name", path))
	}
	for name, sub := range f.Fields {
		errs = append(errs, sub.validate(path+"."+name, racks)...)
	}
	if f.Items != nil {
		errs = append(errs, f.Items.validate(path+".items", racks)...)
	}
	return errs
}

// Domain converts the declaration into a schema field.
func (f Field) Domain() domain.Field {
	res := domain.Field{
		Type:     domain.FieldType(f.Type),
		Required: f.Required,
		Default:  f.Default,
		Unique:   f.Unique,
		Rack:     f.Rack,
	}
	if len(f.Fields) > 0 {
		res.Fields = Fields(f.Fields)
	}
	if f.Items != nil {
		items := f.Items.Domain()
		res.Items = &items
	}
	return res
}

// Fields converts a set of declarations into schema fields.
func Fields(fields map[string]Field) map[string]domain.Field {
	res := make(map[string]domain.Field, len(fields))
	for name, f := range fields {
		res[name] = f.Domain()
	}
	return res
}
