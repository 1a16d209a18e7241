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
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Record maps field names to raw values as produced by the input framing:
// strings for tabular input, JSON scalars for self-describing input. An
// absent key means a missing field, which is distinct from an empty string.
type Record map[string]any

// RowValidator executes a compiled rule set against one record and returns
// the violated rules in evaluation order. Row indices on the returned errors
// are zero; the dispatcher stamps the absolute offset.
type RowValidator interface {
	ValidateRow(rec Record) []ValidationError
}

// NewRowValidator returns the engine for a compiled rule set. The rule set
// is shared read-only; the validator is safe for concurrent use.
func NewRowValidator(rules *RuleSet) RowValidator {
	return &rowValidator{rules: rules}
}

type rowValidator struct {
	rules *RuleSet
}

type fieldState struct {
	evaluated    bool
	missing      bool
	typeMismatch bool
}

func (rv *rowValidator) ValidateRow(rec Record) []ValidationError {
	var errs []ValidationError
	states := map[string]*fieldState{}

	for _, rule := range rv.rules.rules {
		value, present := rec[rule.Field]

		st := states[rule.Field]
		if st == nil {
			st = &fieldState{}
			states[rule.Field] = st
		}
		if !st.evaluated {
			st.evaluated = true
			st.missing = isMissingValue(value, present)
		}

		if rule.Kind == KindRequired {
			if st.missing {
				errs = append(errs, ValidationError{
					Field:   rule.Field,
					Rule:    rule.Name,
					Kind:    KindRequired,
					Message: fmt.Sprintf("field '%s' is required", rule.Field),
				})
			}
			continue
		}

		// A missing field cannot meaningfully fail any other check; required
		// or not, everything else is skipped.
		if st.missing {
			continue
		}

		switch rule.Kind {
		case KindTypeCheck:
			if !checkType(value, rule.Type) {
				st.typeMismatch = true
				errs = append(errs, ValidationError{
					Field:   rule.Field,
					Rule:    rule.Name,
					Kind:    KindTypeCheck,
					Message: fmt.Sprintf("field '%s' must be of type %s", rule.Field, rule.Type),
				})
			}

		case KindRange:
			// Range assumes the declared numeric type held up.
			if st.typeMismatch && rule.Type.IsNumeric() {
				continue
			}
			num, ok := numericValue(value)
			if !ok {
				continue
			}
			if rule.Min != nil && num < *rule.Min {
				errs = append(errs, ValidationError{
					Field:   rule.Field,
					Rule:    rule.Name,
					Kind:    KindRange,
					Message: fmt.Sprintf("field '%s' must be >= %s", rule.Field, formatBound(*rule.Min)),
				})
			} else if rule.Max != nil && num > *rule.Max {
				errs = append(errs, ValidationError{
					Field:   rule.Field,
					Rule:    rule.Name,
					Kind:    KindRange,
					Message: fmt.Sprintf("field '%s' must be <= %s", rule.Field, formatBound(*rule.Max)),
				})
			}

		case KindLength:
			if st.typeMismatch && rule.Type == TypeString {
				continue
			}
			s, ok := stringValue(value)
			if !ok {
				continue
			}
			length := utf8.RuneCountInString(s)
			if rule.MinLen != nil && length < *rule.MinLen {
				errs = append(errs, ValidationError{
					Field:   rule.Field,
					Rule:    rule.Name,
					Kind:    KindLength,
					Message: fmt.Sprintf("field '%s' must have at least %d characters", rule.Field, *rule.MinLen),
				})
			} else if rule.MaxLen != nil && length > *rule.MaxLen {
				errs = append(errs, ValidationError{
					Field:   rule.Field,
					Rule:    rule.Name,
					Kind:    KindLength,
					Message: fmt.Sprintf("field '%s' must have at most %d characters", rule.Field, *rule.MaxLen),
				})
			}

		case KindPattern:
			if st.typeMismatch && rule.Type == TypeString {
				continue
			}
			s, ok := stringValue(value)
			if !ok {
				continue
			}
			if !rule.Pattern.MatchString(s) {
				errs = append(errs, ValidationError{
					Field:   rule.Field,
					Rule:    rule.Name,
					Kind:    KindPattern,
					Message: fmt.Sprintf("field '%s' does not match required pattern", rule.Field),
				})
			}

		case KindChoice:
			// Choice compares the raw value and is independent of the
			// declared type, so it still runs after a type mismatch.
			if !containsValue(rule.Choices, value) {
				errs = append(errs, ValidationError{
					Field:   rule.Field,
					Rule:    rule.Name,
					Kind:    KindChoice,
					Message: fmt.Sprintf("field '%s' must be one of %v", rule.Field, rule.Choices),
				})
			}

		case KindCustom:
			if !runPredicate(rule.Check, value) {
				msg := rule.Message
				if msg == "" {
					msg = fmt.Sprintf("field '%s' failed custom validation", rule.Field)
				}
				errs = append(errs, ValidationError{
					Field:   rule.Field,
					Rule:    rule.Name,
					Kind:    KindCustom,
					Message: msg,
				})
			}
		}
	}

	for _, rr := range rv.rules.rowRules {
		if !runRowPredicate(rr.Check, rec) {
			msg := rr.Message
			if msg == "" {
				msg = fmt.Sprintf("rule '%s' failed", rr.Name)
			}
			errs = append(errs, ValidationError{
				Field:   "*",
				Rule:    rr.Name,
				Kind:    KindCustom,
				Message: msg,
			})
		}
	}

	return errs
}

// runPredicate executes a custom predicate, converting a panic into a plain
// failure so user code can never abort the run.
func runPredicate(fn Predicate, value any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return fn(value)
}

func runRowPredicate(fn RowPredicate, rec Record) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return fn(rec)
}

// isMissingValue treats an absent key, a nil value, and a blank string all
// as missing. Tabular framing can only express absence as an empty cell.
func isMissingValue(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// checkType reports whether a raw value satisfies the declared type. String
// input that parses as the declared numeric or boolean type passes, since
// tabular framing delivers every value as a string.
func checkType(v any, t FieldType) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInteger:
		switch n := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return n == math.Trunc(n)
		case float32:
			return float64(n) == math.Trunc(float64(n))
		case string:
			_, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
			return err == nil
		}
		return false
	case TypeFloat:
		switch n := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		case string:
			_, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			return err == nil
		}
		return false
	case TypeBoolean:
		switch n := v.(type) {
		case bool:
			return true
		case string:
			switch strings.ToLower(strings.TrimSpace(n)) {
			case "true", "false", "1", "0":
				return true
			}
		}
		return false
	}
	return true
}

// numericValue extracts a numeric magnitude from a native number or a
// parseable string.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// containsValue reports whether value matches any enumerated choice,
// comparing numerics by magnitude so 42, 42.0 and "42" agree.
func containsValue(choices []any, value any) bool {
	for _, c := range choices {
		if valueEquals(c, value) {
			return true
		}
	}
	return false
}

func valueEquals(a, b any) bool {
	// Two strings compare textually. A native number on either side pulls
	// the comparison into numeric space, so int64(42), 42.0 and "42" agree
	// when a tabular value meets a typed choice list.
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return as == bs
	}
	if an, aok := numericValue(a); aok {
		if bn, bok := numericValue(b); bok {
			return an == bn
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
	}
	return false
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
