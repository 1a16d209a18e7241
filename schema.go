// Copyright 2026 The Rowpipe Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rowpipe

import (
	"fmt"
)

// FieldType is the declared type of a field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeFloat   FieldType = "float"
	TypeBoolean FieldType = "boolean"
)

// IsNumeric reports whether values of the type carry a numeric magnitude.
func (t FieldType) IsNumeric() bool {
	return t == TypeInteger || t == TypeFloat
}

func parseFieldType(s string) (FieldType, bool) {
	switch s {
	case "string", "str":
		return TypeString, true
	case "integer", "int":
		return TypeInteger, true
	case "float", "number":
		return TypeFloat, true
	case "boolean", "bool":
		return TypeBoolean, true
	}
	return "", false
}

// Predicate is a user-supplied check over a single field value. It must be
// pure; a panic inside a predicate is captured and reported as a rule
// failure, never propagated.
type Predicate func(value any) bool

// RowPredicate is a user-supplied check over a whole record.
type RowPredicate func(rec Record) bool

// FieldSpec is the declarative constraint set for one named field. It is a
// plain value; once the owning Schema is built it is never mutated.
type FieldSpec struct {
	Name      string
	Type      FieldType
	Required  bool
	Min       *float64
	Max       *float64
	MinLength *int
	MaxLength *int
	Pattern   string // regular expression, compiled once by Compile
	Choices   []any
	Custom    Predicate
	Message   string // failure message for the custom predicate
}

// RowRule is a named record-level predicate registered on a schema. It runs
// after all field rules for a row.
type RowRule struct {
	Name    string
	Check   RowPredicate
	Message string
}

// Schema is an ordered, immutable set of field specifications plus optional
// record-level rules. It is shared read-only across all workers; build one
// with NewSchema and never mutate it afterwards.
type Schema struct {
	fields   []FieldSpec
	rowRules []RowRule
}

// Fields returns the field specifications in declaration order.
func (s *Schema) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// RowRules returns the registered record-level rules in registration order.
func (s *Schema) RowRules() []RowRule {
	out := make([]RowRule, len(s.rowRules))
	copy(out, s.rowRules)
	return out
}

// Field returns the specification for name, if declared.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Len returns the number of declared fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// SchemaBuilder accumulates field specifications and produces an immutable
// Schema. Declaration order is preserved; it determines compiled rule order.
type SchemaBuilder struct {
	fields   []FieldSpec
	rowRules []RowRule
	seen     map[string]bool
	err      error
}

func NewSchema() *SchemaBuilder {
	return &SchemaBuilder{seen: map[string]bool{}}
}

// Field declares a field with the given name and type. Constraints are
// attached via options.
func (b *SchemaBuilder) Field(name string, typ FieldType, opts ...FieldOption) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = &SchemaError{Reason: "empty field name"}
		return b
	}
	if b.seen[name] {
		b.err = &SchemaError{Field: name, Reason: "duplicate field name"}
		return b
	}
	spec := FieldSpec{Name: name, Type: typ}
	for _, opt := range opts {
		opt(&spec)
	}
	b.seen[name] = true
	b.fields = append(b.fields, spec)
	return b
}

// Spec declares a pre-built field specification, e.g. one produced by
// ParseFieldExpr.
func (b *SchemaBuilder) Spec(spec FieldSpec) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if spec.Name == "" {
		b.err = &SchemaError{Reason: "empty field name"}
		return b
	}
	if b.seen[spec.Name] {
		b.err = &SchemaError{Field: spec.Name, Reason: "duplicate field name"}
		return b
	}
	b.seen[spec.Name] = true
	b.fields = append(b.fields, spec)
	return b
}

// Rule registers a named record-level predicate. Registration is explicit;
// there is no implicit rule collection at definition time.
func (b *SchemaBuilder) Rule(name string, check RowPredicate, message string) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = &SchemaError{Reason: "empty rule name"}
		return b
	}
	if check == nil {
		b.err = &SchemaError{Reason: fmt.Sprintf("rule %q has no predicate", name)}
		return b
	}
	b.rowRules = append(b.rowRules, RowRule{Name: name, Check: check, Message: message})
	return b
}

// Build finalizes the schema. The returned value is immutable.
func (b *SchemaBuilder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	s := &Schema{
		fields:   make([]FieldSpec, len(b.fields)),
		rowRules: make([]RowRule, len(b.rowRules)),
	}
	copy(s.fields, b.fields)
	copy(s.rowRules, b.rowRules)
	return s, nil
}

// FieldOption configures a FieldSpec during declaration.
type FieldOption func(*FieldSpec)

func Required() FieldOption {
	return func(f *FieldSpec) { f.Required = true }
}

func Min(v float64) FieldOption {
	return func(f *FieldSpec) { f.Min = &v }
}

func Max(v float64) FieldOption {
	return func(f *FieldSpec) { f.Max = &v }
}

func MinLen(n int) FieldOption {
	return func(f *FieldSpec) { f.MinLength = &n }
}

func MaxLen(n int) FieldOption {
	return func(f *FieldSpec) { f.MaxLength = &n }
}

func Pattern(expr string) FieldOption {
	return func(f *FieldSpec) { f.Pattern = expr }
}

func OneOf(values ...any) FieldOption {
	return func(f *FieldSpec) { f.Choices = values }
}

// Check attaches a custom predicate with an optional failure message.
func Check(fn Predicate, message string) FieldOption {
	return func(f *FieldSpec) {
		f.Custom = fn
		f.Message = message
	}
}
