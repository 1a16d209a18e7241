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
	"strconv"
	"strings"
)

// Compact field expression syntax used in schema files:
//
//	id:     string required
//	age:    integer required range(18, 120)
//	email:  string matches(^[\w.-]+@[\w.-]+\.\w+$)
//	status: string one_of(active, inactive)
//	name:   string len(1, 64)
//
// The first term is the field type; the remaining terms are constraints.

var constraintRegex = regexp.MustCompile(`^(\w+)(?:\((.*)\))?$`)

// ParseFieldExpr parses a compact field expression into a FieldSpec.
func ParseFieldExpr(name, expr string) (FieldSpec, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return FieldSpec{}, &SchemaError{Field: name, Reason: "empty field expression"}
	}

	terms, err := splitTerms(expr)
	if err != nil {
		return FieldSpec{}, &SchemaError{Field: name, Reason: err.Error()}
	}

	typ, ok := parseFieldType(terms[0])
	if !ok {
		return FieldSpec{}, &SchemaError{Field: name, Reason: fmt.Sprintf("unknown field type %q", terms[0])}
	}

	spec := FieldSpec{Name: name, Type: typ}
	for _, term := range terms[1:] {
		if err := applyConstraint(&spec, term); err != nil {
			return FieldSpec{}, &SchemaError{Field: name, Reason: err.Error()}
		}
	}

	return spec, nil
}

func applyConstraint(spec *FieldSpec, term string) error {
	matches := constraintRegex.FindStringSubmatch(term)
	if matches == nil {
		return fmt.Errorf("invalid constraint %q", term)
	}

	fn := matches[1]
	arg := matches[2]

	switch fn {
	case "required":
		if arg != "" {
			return fmt.Errorf("required takes no parameters")
		}
		spec.Required = true

	case "min":
		v, err := parseNumber(arg)
		if err != nil {
			return fmt.Errorf("min: %v", err)
		}
		spec.Min = &v

	case "max":
		v, err := parseNumber(arg)
		if err != nil {
			return fmt.Errorf("max: %v", err)
		}
		spec.Max = &v

	case "range":
		lo, hi, err := parseNumberPair(arg)
		if err != nil {
			return fmt.Errorf("range: %v", err)
		}
		spec.Min = &lo
		spec.Max = &hi

	case "min_len":
		n, err := parseLength(arg)
		if err != nil {
			return fmt.Errorf("min_len: %v", err)
		}
		spec.MinLength = &n

	case "max_len":
		n, err := parseLength(arg)
		if err != nil {
			return fmt.Errorf("max_len: %v", err)
		}
		spec.MaxLength = &n

	case "len":
		parts := splitParameters(arg)
		if len(parts) != 2 {
			return fmt.Errorf("len expects two parameters, got %d", len(parts))
		}
		lo, err := parseLength(parts[0])
		if err != nil {
			return fmt.Errorf("len: %v", err)
		}
		hi, err := parseLength(parts[1])
		if err != nil {
			return fmt.Errorf("len: %v", err)
		}
		spec.MinLength = &lo
		spec.MaxLength = &hi

	case "matches":
		if arg == "" {
			return fmt.Errorf("matches expects a pattern")
		}
		// Stored verbatim; the rule compiler compiles it and reports a bad
		// pattern before any row is processed.
		spec.Pattern = arg

	case "one_of":
		parts := splitParameters(arg)
		if len(parts) == 0 {
			return fmt.Errorf("one_of expects at least one value")
		}
		choices := make([]any, 0, len(parts))
		for _, p := range parts {
			choices = append(choices, parseChoiceValue(p, spec.Type))
		}
		spec.Choices = choices

	default:
		return fmt.Errorf("unknown constraint %q", fn)
	}

	return nil
}

// splitTerms splits a field expression on whitespace, keeping parenthesized
// parameter lists intact so patterns may contain spaces.
func splitTerms(expr string) ([]string, error) {
	var terms []string
	var cur strings.Builder
	depth := 0

	for _, r := range expr {
		switch {
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses in %q", expr)
			}
			cur.WriteRune(r)
		case (r == ' ' || r == '\t') && depth == 0:
			if cur.Len() > 0 {
				terms = append(terms, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses in %q", expr)
	}
	if cur.Len() > 0 {
		terms = append(terms, cur.String())
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return terms, nil
}

func splitParameters(paramStr string) []string {
	if strings.TrimSpace(paramStr) == "" {
		return nil
	}
	params := strings.Split(paramStr, ",")
	for i, p := range params {
		params[i] = strings.TrimSpace(p)
	}
	return params
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func parseNumberPair(s string) (float64, float64, error) {
	parts := splitParameters(s)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expects two parameters, got %d", len(parts))
	}
	lo, err := parseNumber(parts[0])
	if err != nil {
		return 0, 0, err
	}
	hi, err := parseNumber(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("min %v greater than max %v", lo, hi)
	}
	return lo, hi, nil
}

func parseLength(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative length %d", n)
	}
	return n, nil
}

// parseChoiceValue interprets an enumerated value according to the declared
// field type, falling back to the literal string.
func parseChoiceValue(s string, typ FieldType) any {
	switch typ {
	case TypeInteger:
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
	case TypeFloat:
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	case TypeBoolean:
		if v, err := strconv.ParseBool(s); err == nil {
			return v
		}
	}
	return s
}
