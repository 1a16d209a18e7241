package rowpipe

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestValidationResultMerge(t *testing.T) {
	a := &ValidationResult{
		ValidCount:   3,
		InvalidCount: 1,
		TotalRows:    4,
		Errors: []ValidationError{
			{RowIndex: 2, Field: "age", Rule: "age_range", Message: "field 'age' must be >= 18"},
		},
	}
	b := &ValidationResult{
		ValidCount:   1,
		InvalidCount: 1,
		TotalRows:    2,
		Errors: []ValidationError{
			{RowIndex: 5, Field: "id", Rule: "id_required", Message: "field 'id' is required"},
		},
	}

	a.Merge(b)

	if a.ValidCount != 4 || a.InvalidCount != 2 || a.TotalRows != 6 {
		t.Errorf("counts = %d/%d/%d, want 4/2/6", a.ValidCount, a.InvalidCount, a.TotalRows)
	}
	if a.ValidCount+a.InvalidCount != a.TotalRows {
		t.Errorf("count invariant broken: %d+%d != %d", a.ValidCount, a.InvalidCount, a.TotalRows)
	}
	if len(a.Errors) != 2 || a.Errors[0].RowIndex != 2 || a.Errors[1].RowIndex != 5 {
		t.Errorf("merged errors = %v", a.Errors)
	}
}

func TestValidationResultMergeNil(t *testing.T) {
	r := &ValidationResult{ValidCount: 1, TotalRows: 1}
	r.Merge(nil)
	if r.ValidCount != 1 || r.TotalRows != 1 {
		t.Errorf("merge with nil changed the result: %+v", r)
	}
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		name   string
		result ValidationResult
		want   float64
	}{
		{"empty", ValidationResult{}, 0},
		{"all valid", ValidationResult{ValidCount: 10, TotalRows: 10}, 100},
		{"half valid", ValidationResult{ValidCount: 5, InvalidCount: 5, TotalRows: 10}, 50},
		{"none valid", ValidationResult{InvalidCount: 4, TotalRows: 4}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.SuccessRate(); got != tt.want {
				t.Errorf("SuccessRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorsByFieldAndRule(t *testing.T) {
	r := &ValidationResult{
		Errors: []ValidationError{
			{RowIndex: 0, Field: "id", Rule: "id_required"},
			{RowIndex: 1, Field: "age", Rule: "age_range"},
			{RowIndex: 2, Field: "age", Rule: "age_type"},
			{RowIndex: 3, Field: "age", Rule: "age_range"},
		},
	}

	byField := r.ErrorsByField("age")
	if len(byField) != 3 {
		t.Errorf("ErrorsByField(age) returned %d errors, want 3", len(byField))
	}
	byRule := r.ErrorsByRule("age_range")
	if len(byRule) != 2 {
		t.Errorf("ErrorsByRule(age_range) returned %d errors, want 2", len(byRule))
	}
	if got := r.ErrorsByField("missing"); got != nil {
		t.Errorf("ErrorsByField(missing) = %v, want nil", got)
	}
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{RowIndex: 7, Field: "age", Rule: "age_range", Message: "field 'age' must be >= 18"}
	got := e.String()
	want := `row=7 field=age rule=age_range message="field 'age' must be >= 18"`
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSummary(t *testing.T) {
	r := &ValidationResult{ValidCount: 8, InvalidCount: 2, TotalRows: 10,
		Errors: []ValidationError{{}, {}, {}}}
	s := r.Summary()

	for _, want := range []string{"Total Rows: 10", "Valid: 8", "Invalid: 2", "Success Rate: 80.00%", "Total Errors: 3"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary %q missing %q", s, want)
		}
	}
}

func TestSaveReport(t *testing.T) {
	r := &ValidationResult{
		ValidCount:   1,
		InvalidCount: 1,
		TotalRows:    2,
		Errors: []ValidationError{
			{RowIndex: 1, Field: "age", Rule: "age_range", Message: "field 'age' must be <= 120"},
		},
	}

	path := filepath.Join(t.TempDir(), "report.json")
	if err := r.SaveReport(path); err != nil {
		t.Fatalf("failed to save report: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}

	var got Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	want := Report{
		ValidCount:   1,
		InvalidCount: 1,
		TotalRows:    2,
		SuccessRate:  50,
		Errors:       r.Errors,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("report = %+v, want %+v", got, want)
	}
}

func TestReportEmptyErrorsSerializesAsArray(t *testing.T) {
	r := &ValidationResult{ValidCount: 1, TotalRows: 1}
	data, err := r.MarshalReport()
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if !strings.Contains(string(data), `"errors": []`) {
		t.Errorf("report %s should contain an empty errors array, not null", data)
	}
}
