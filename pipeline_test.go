package rowpipe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func idAgeSchema(t *testing.T) *Schema {
	t.Helper()
	schema, err := NewSchema().
		Field("id", TypeString, Required()).
		Field("age", TypeInteger, Min(18), Max(120)).
		Build()
	if err != nil {
		t.Fatalf("failed to build schema: %v", err)
	}
	return schema
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestValidateCSVEndToEnd(t *testing.T) {
	path := writeTempFile(t, "people.csv",
		"id,age\n1,15\n2,30\n,200\n")

	v, err := NewValidator(idAgeSchema(t))
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	res, err := v.ValidateCSV(context.Background(), path)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}

	if res.TotalRows != 3 || res.ValidCount != 1 || res.InvalidCount != 2 {
		t.Errorf("counts = %d/%d/%d, want total=3 valid=1 invalid=2",
			res.TotalRows, res.ValidCount, res.InvalidCount)
	}
	if len(res.Errors) != 3 {
		t.Fatalf("got %d errors %v, want 3", len(res.Errors), res.Errors)
	}
	// Row 0: age below minimum. Row 2: missing id, age above maximum.
	if res.Errors[0].RowIndex != 0 || res.Errors[0].Rule != "age_range" {
		t.Errorf("errors[0] = %v", res.Errors[0])
	}
	if res.Errors[1].RowIndex != 2 || res.Errors[1].Rule != "id_required" {
		t.Errorf("errors[1] = %v", res.Errors[1])
	}
	if res.Errors[2].RowIndex != 2 || res.Errors[2].Rule != "age_range" {
		t.Errorf("errors[2] = %v", res.Errors[2])
	}
}

func TestValidateJSONLEndToEnd(t *testing.T) {
	path := writeTempFile(t, "people.jsonl",
		`{"id":"1","age":25}
{"id":"2","age":17}
{"age":30}
`)

	v, err := NewValidator(idAgeSchema(t))
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	res, err := v.ValidateJSONL(context.Background(), path)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if res.TotalRows != 3 || res.ValidCount != 1 || res.InvalidCount != 2 {
		t.Errorf("counts = %d/%d/%d, want total=3 valid=1 invalid=2",
			res.TotalRows, res.ValidCount, res.InvalidCount)
	}
}

func TestValidateFileSmallWindows(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("id,age\n")
	for i := 0; i < 7; i++ {
		sb.WriteString("x,30\n")
	}
	path := writeTempFile(t, "people.csv", sb.String())

	v, err := NewValidator(idAgeSchema(t), WithWindowSize(3), WithChunkSize(2))
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	res, err := v.ValidateCSV(context.Background(), path)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if res.TotalRows != 7 || res.ValidCount != 7 {
		t.Errorf("counts = %d/%d, want 7 rows all valid", res.TotalRows, res.ValidCount)
	}
}

func TestValidateFileFramingError(t *testing.T) {
	path := writeTempFile(t, "bad.jsonl",
		`{"id":"1"}
not json at all
`)

	v, err := NewValidator(idAgeSchema(t))
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	_, err = v.ValidateJSONL(context.Background(), path)
	var ferr *FramingError
	if !errors.As(err, &ferr) {
		t.Fatalf("err = %v, want *FramingError", err)
	}
	if ferr.Line != 2 {
		t.Errorf("framing error line = %d, want 2", ferr.Line)
	}
}

func TestValidateFileCacheHit(t *testing.T) {
	path := writeTempFile(t, "people.csv", "id,age\n1,15\n2,30\n")

	cache, err := NewContentCache(t.TempDir(), 0, 0, nil)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	v, err := NewValidator(idAgeSchema(t), WithCache(cache))
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	first, err := v.ValidateCSV(context.Background(), path)
	if err != nil {
		t.Fatalf("first validation failed: %v", err)
	}
	if len(first.Errors) != 1 {
		t.Fatalf("first run errors = %v, want 1", first.Errors)
	}

	second, err := v.ValidateCSV(context.Background(), path)
	if err != nil {
		t.Fatalf("second validation failed: %v", err)
	}
	if second.TotalRows != first.TotalRows || second.InvalidCount != first.InvalidCount {
		t.Errorf("cached counts %d/%d differ from first run %d/%d",
			second.TotalRows, second.InvalidCount, first.TotalRows, first.InvalidCount)
	}
	// A hit reproduces counts only.
	if len(second.Errors) != 0 {
		t.Errorf("cached result carries %d errors, want none", len(second.Errors))
	}

	// A one-byte change misses.
	if err := os.WriteFile(path, []byte("id,age\n1,16\n2,30\n"), 0o644); err != nil {
		t.Fatalf("failed to modify file: %v", err)
	}
	third, err := v.ValidateCSV(context.Background(), path)
	if err != nil {
		t.Fatalf("third validation failed: %v", err)
	}
	if len(third.Errors) != 1 {
		t.Errorf("changed file should revalidate, got errors %v", third.Errors)
	}
}

func TestValidateRecords(t *testing.T) {
	v, err := NewValidator(idAgeSchema(t), WithExecMode(Sequential))
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	records := []Record{
		{"id": "1", "age": 15},
		{"id": "2", "age": 30},
	}
	res, err := v.ValidateRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if res.ValidCount != 1 || res.InvalidCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", res.ValidCount, res.InvalidCount)
	}
}

func TestValidateRecord(t *testing.T) {
	v, err := NewValidator(idAgeSchema(t))
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	errs := v.ValidateRecord(Record{"age": 200})
	if len(errs) != 2 {
		t.Fatalf("got %d errors %v, want 2", len(errs), errs)
	}
	if errs[0].Rule != "id_required" || errs[1].Rule != "age_range" {
		t.Errorf("rules = [%s %s], want [id_required age_range]", errs[0].Rule, errs[1].Rule)
	}
}

func TestStream(t *testing.T) {
	input := "id,age\n" + strings.Repeat("x,30\n", 7)

	v, err := NewValidator(idAgeSchema(t), WithWindowSize(3))
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	var windows int
	var total int
	for res, err := range v.Stream(context.Background(), strings.NewReader(input), FramingCSV) {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		windows++
		total += res.TotalRows
	}

	if windows != 3 {
		t.Errorf("got %d windows, want 3", windows)
	}
	if total != 7 {
		t.Errorf("summed rows = %d, want 7", total)
	}
}

func TestStreamStopsOnFramingError(t *testing.T) {
	input := `{"id":"1","age":20}
garbage
`
	v, err := NewValidator(idAgeSchema(t), WithWindowSize(1))
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	var sawError bool
	for _, err := range v.Stream(context.Background(), strings.NewReader(input), FramingJSONL) {
		if err != nil {
			var ferr *FramingError
			if !errors.As(err, &ferr) {
				t.Fatalf("stream error type = %T, want *FramingError", err)
			}
			sawError = true
			break
		}
	}
	if !sawError {
		t.Error("stream never surfaced the framing error")
	}
}

func TestValidatorModesAgree(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("id,age\n")
	for i := 0; i < 53; i++ {
		if i%7 == 0 {
			sb.WriteString(",30\n")
		} else {
			sb.WriteString("x,15\n")
		}
	}
	input := sb.String()

	run := func(mode ExecMode) *ValidationResult {
		v, err := NewValidator(idAgeSchema(t),
			WithExecMode(mode), WithWindowSize(10), WithChunkSize(3), WithWorkers(4))
		if err != nil {
			t.Fatalf("failed to create validator: %v", err)
		}
		res, err := v.ValidateReader(context.Background(), strings.NewReader(input), FramingCSV)
		if err != nil {
			t.Fatalf("validation failed: %v", err)
		}
		return res
	}

	seq := run(Sequential)
	par := run(Parallel)
	if !reflect.DeepEqual(seq, par) {
		t.Errorf("sequential and parallel results differ:\nseq %+v\npar %+v", seq, par)
	}
}

func TestNewValidatorNilSchema(t *testing.T) {
	_, err := NewValidator(nil)
	var serr *SchemaError
	if !errors.As(err, &serr) {
		t.Errorf("err = %v, want *SchemaError", err)
	}
}

func TestNewValidatorBadPattern(t *testing.T) {
	schema, err := NewSchema().Field("x", TypeString, Pattern("([bad")).Build()
	if err != nil {
		t.Fatalf("failed to build schema: %v", err)
	}
	if _, err := NewValidator(schema); err == nil {
		t.Error("expected a compile error at construction, got none")
	}
}
