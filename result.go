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
	"os"

	"github.com/goccy/go-json"
)

// ValidationError describes a single violated rule on a single row.
type ValidationError struct {
	RowIndex int      `json:"row_index"`
	Field    string   `json:"field"`
	Rule     string   `json:"rule"`
	Kind     RuleKind `json:"-"`
	Message  string   `json:"message"`
}

func (e ValidationError) String() string {
	return fmt.Sprintf("row=%d field=%s rule=%s message=%q", e.RowIndex, e.Field, e.Rule, e.Message)
}

// ValidationResult is the outcome of validating a batch of rows. The
// invariant ValidCount+InvalidCount == TotalRows always holds; Errors are
// ordered by ascending row index.
type ValidationResult struct {
	ValidCount   int
	InvalidCount int
	TotalRows    int
	Errors       []ValidationError
}

// Merge folds another result into this one. Counts are summed; the other
// result's errors are appended, so callers merge in row order.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.ValidCount += other.ValidCount
	r.InvalidCount += other.InvalidCount
	r.TotalRows += other.TotalRows
	r.Errors = append(r.Errors, other.Errors...)
}

// SuccessRate returns the percentage of valid rows, 0 for an empty result.
func (r *ValidationResult) SuccessRate() float64 {
	if r.TotalRows == 0 {
		return 0
	}
	return float64(r.ValidCount) / float64(r.TotalRows) * 100
}

// IsValid reports whether every row passed.
func (r *ValidationResult) IsValid() bool {
	return r.InvalidCount == 0
}

// ErrorsByField returns all errors recorded for one field.
func (r *ValidationResult) ErrorsByField(field string) []ValidationError {
	var out []ValidationError
	for _, e := range r.Errors {
		if e.Field == field {
			out = append(out, e)
		}
	}
	return out
}

// ErrorsByRule returns all errors recorded for one rule name.
func (r *ValidationResult) ErrorsByRule(rule string) []ValidationError {
	var out []ValidationError
	for _, e := range r.Errors {
		if e.Rule == rule {
			out = append(out, e)
		}
	}
	return out
}

// Summary returns a human-readable multi-line digest.
func (r *ValidationResult) Summary() string {
	return fmt.Sprintf(
		"Validation Summary:\n"+
			"  Total Rows: %d\n"+
			"  Valid: %d\n"+
			"  Invalid: %d\n"+
			"  Success Rate: %.2f%%\n"+
			"  Total Errors: %d",
		r.TotalRows, r.ValidCount, r.InvalidCount, r.SuccessRate(), len(r.Errors))
}

// Report is the serializable shape of a validation result.
type Report struct {
	ValidCount   int               `json:"valid_count"`
	InvalidCount int               `json:"invalid_count"`
	TotalRows    int               `json:"total_rows"`
	SuccessRate  float64           `json:"success_rate"`
	Errors       []ValidationError `json:"errors"`
}

// Report converts the result into its serializable form.
func (r *ValidationResult) Report() *Report {
	errs := r.Errors
	if errs == nil {
		errs = []ValidationError{}
	}
	return &Report{
		ValidCount:   r.ValidCount,
		InvalidCount: r.InvalidCount,
		TotalRows:    r.TotalRows,
		SuccessRate:  r.SuccessRate(),
		Errors:       errs,
	}
}

// MarshalReport serializes the result's report as indented JSON.
func (r *ValidationResult) MarshalReport() ([]byte, error) {
	return json.MarshalIndent(r.Report(), "", "  ")
}

// SaveReport writes the JSON report to a file.
func (r *ValidationResult) SaveReport(path string) error {
	data, err := r.MarshalReport()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
