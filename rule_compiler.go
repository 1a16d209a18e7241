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
	"regexp"
)

// RuleKind identifies the atomic check a compiled rule performs.
type RuleKind string

const (
	KindRequired  RuleKind = "required"
	KindTypeCheck RuleKind = "type"
	KindRange     RuleKind = "range"
	KindLength    RuleKind = "length"
	KindPattern   RuleKind = "pattern"
	KindChoice    RuleKind = "choice"
	KindCustom    RuleKind = "custom"
)

// CompiledRule is a single atomic check derived from a FieldSpec. Only the
// parameters relevant to Kind are populated. Compiled rules are immutable
// and shared read-only across all workers.
type CompiledRule struct {
	Name  string
	Field string
	Kind  RuleKind

	Type    FieldType // TypeCheck
	Min     *float64  // Range
	Max     *float64  // Range
	MinLen  *int      // Length
	MaxLen  *int      // Length
	Pattern *regexp.Regexp
	Choices []any
	Check   Predicate
	Message string
}

// RuleSet is the compiled form of a Schema: a flat, ordered sequence of
// field rules plus any record-level rules. Rules for a field are contiguous
// and ordered Required, TypeCheck, then the remaining constraints in
// declaration order.
type RuleSet struct {
	rules    []CompiledRule
	rowRules []RowRule
}

// Rules returns the compiled field rules in evaluation order.
func (rs *RuleSet) Rules() []CompiledRule {
	out := make([]CompiledRule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// RowRules returns the record-level rules in registration order.
func (rs *RuleSet) RowRules() []RowRule {
	out := make([]RowRule, len(rs.rowRules))
	copy(out, rs.rowRules)
	return out
}

// Len returns the number of compiled field rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Compile turns a schema into its rule set. Compilation is pure and
// deterministic; an unparsable pattern is reported here, never at row time.
func Compile(s *Schema) (*RuleSet, error) {
	rs := &RuleSet{rowRules: s.RowRules()}

	for _, f := range s.Fields() {
		if f.Required {
			rs.rules = append(rs.rules, CompiledRule{
				Name:  f.Name + "_required",
				Field: f.Name,
				Kind:  KindRequired,
			})
		}

		rs.rules = append(rs.rules, CompiledRule{
			Name:  f.Name + "_type",
			Field: f.Name,
			Kind:  KindTypeCheck,
			Type:  f.Type,
		})

		if f.Min != nil || f.Max != nil {
			rs.rules = append(rs.rules, CompiledRule{
				Name:  f.Name + "_range",
				Field: f.Name,
				Kind:  KindRange,
				Type:  f.Type,
				Min:   f.Min,
				Max:   f.Max,
			})
		}

		if f.MinLength != nil || f.MaxLength != nil {
			rs.rules = append(rs.rules, CompiledRule{
				Name:   f.Name + "_length",
				Field:  f.Name,
				Kind:   KindLength,
				Type:   f.Type,
				MinLen: f.MinLength,
				MaxLen: f.MaxLength,
			})
		}

		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return nil, &SchemaError{
					Field:  f.Name,
					Reason: fmt.Sprintf("invalid pattern %q", f.Pattern),
					Err:    err,
				}
			}
			rs.rules = append(rs.rules, CompiledRule{
				Name:    f.Name + "_pattern",
				Field:   f.Name,
				Kind:    KindPattern,
				Type:    f.Type,
				Pattern: re,
			})
		}

		if len(f.Choices) > 0 {
			choices := make([]any, len(f.Choices))
			copy(choices, f.Choices)
			rs.rules = append(rs.rules, CompiledRule{
				Name:    f.Name + "_choice",
				Field:   f.Name,
				Kind:    KindChoice,
				Type:    f.Type,
				Choices: choices,
			})
		}

		if f.Custom != nil {
			rs.rules = append(rs.rules, CompiledRule{
				Name:    f.Name + "_custom",
				Field:   f.Name,
				Kind:    KindCustom,
				Type:    f.Type,
				Check:   f.Custom,
				Message: f.Message,
			})
		}
	}

	return rs, nil
}
