package rowpipe

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func makeRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		rec := Record{"id": fmt.Sprintf("%d", i), "age": 20 + i}
		if i%5 == 4 {
			rec["age"] = 10 // below the minimum
		}
		records[i] = rec
	}
	return records
}

func TestDispatchSequentialEqualsParallel(t *testing.T) {
	rv := NewRowValidator(idAgeRules(t))
	records := makeRecords(97)

	seq := NewChunkDispatcher(rv, DispatchConfig{Mode: Sequential, ChunkSize: 10}, nil)
	want, err := seq.Dispatch(context.Background(), records, 0)
	if err != nil {
		t.Fatalf("sequential dispatch failed: %v", err)
	}

	for _, chunkSize := range []int{1, 7, 10, 50, 200} {
		for _, workers := range []int{1, 4, 16} {
			name := fmt.Sprintf("chunk=%d workers=%d", chunkSize, workers)
			t.Run(name, func(t *testing.T) {
				par := NewChunkDispatcher(rv, DispatchConfig{
					Mode: Parallel, ChunkSize: chunkSize, Workers: workers,
				}, nil)
				got, err := par.Dispatch(context.Background(), records, 0)
				if err != nil {
					t.Fatalf("parallel dispatch failed: %v", err)
				}
				if !reflect.DeepEqual(got, want) {
					t.Errorf("parallel result differs from sequential:\ngot  %+v\nwant %+v", got, want)
				}
			})
		}
	}
}

func TestDispatchRowIndicesAreAbsolute(t *testing.T) {
	rv := NewRowValidator(idAgeRules(t))
	d := NewChunkDispatcher(rv, DispatchConfig{Mode: Parallel, ChunkSize: 3, Workers: 4}, nil)

	records := makeRecords(20)
	const baseOffset = 100
	res, err := d.Dispatch(context.Background(), records, baseOffset)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	// Rows 4, 9, 14, 19 carry the bad age.
	wantIndices := []int{104, 109, 114, 119}
	if len(res.Errors) != len(wantIndices) {
		t.Fatalf("got %d errors %v, want %d", len(res.Errors), res.Errors, len(wantIndices))
	}
	for i, e := range res.Errors {
		if e.RowIndex != wantIndices[i] {
			t.Errorf("error[%d].RowIndex = %d, want %d", i, e.RowIndex, wantIndices[i])
		}
	}
}

func TestDispatchEmpty(t *testing.T) {
	rv := NewRowValidator(idAgeRules(t))
	d := NewChunkDispatcher(rv, DispatchConfig{Mode: Parallel}, nil)

	res, err := d.Dispatch(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if res.TotalRows != 0 || len(res.Errors) != 0 {
		t.Errorf("empty dispatch produced %+v", res)
	}
}

func TestDispatchProgress(t *testing.T) {
	rv := NewRowValidator(idAgeRules(t))

	var mu sync.Mutex
	var calls int
	var lastValid, lastInvalid, lastTotal int
	seen := map[int]bool{}

	d := NewChunkDispatcher(rv, DispatchConfig{
		Mode: Parallel, ChunkSize: 5, Workers: 4,
		Progress: func(unitIndex, totalUnits, validSoFar, invalidSoFar int) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			seen[unitIndex] = true
			lastValid, lastInvalid, lastTotal = validSoFar, invalidSoFar, totalUnits
			if validSoFar+invalidSoFar > 30 {
				t.Errorf("running totals %d+%d exceed the row count", validSoFar, invalidSoFar)
			}
		},
	}, nil)

	res, err := d.Dispatch(context.Background(), makeRecords(30), 0)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 6 || lastTotal != 6 {
		t.Errorf("progress called %d times with totalUnits %d, want 6 and 6", calls, lastTotal)
	}
	for i := 0; i < 6; i++ {
		if !seen[i] {
			t.Errorf("no progress call for unit %d", i)
		}
	}
	if lastValid != res.ValidCount || lastInvalid != res.InvalidCount {
		t.Errorf("final progress totals %d/%d, want %d/%d", lastValid, lastInvalid, res.ValidCount, res.InvalidCount)
	}
}

func TestDispatchProgressPanicRecovered(t *testing.T) {
	rv := NewRowValidator(idAgeRules(t))
	d := NewChunkDispatcher(rv, DispatchConfig{
		Mode: Parallel, ChunkSize: 5, Workers: 2,
		Progress: func(int, int, int, int) { panic("observer exploded") },
	}, nil)

	res, err := d.Dispatch(context.Background(), makeRecords(20), 0)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if res.TotalRows != 20 {
		t.Errorf("total rows = %d, want 20", res.TotalRows)
	}
}

type panicValidator struct{}

func (panicValidator) ValidateRow(rec Record) []ValidationError {
	if rec["boom"] == true {
		panic("validator exploded")
	}
	return nil
}

func TestDispatchWorkerPanicIsError(t *testing.T) {
	records := makeRecords(10)
	records[7] = Record{"boom": true}

	d := NewChunkDispatcher(panicValidator{}, DispatchConfig{
		Mode: Parallel, ChunkSize: 2, Workers: 4,
	}, nil)

	res, err := d.Dispatch(context.Background(), records, 0)
	if err == nil {
		t.Fatal("expected a worker error, got none")
	}
	if res != nil {
		t.Errorf("got a partial result %+v alongside the error, want nil", res)
	}
	var werr *WorkerError
	if !errors.As(err, &werr) {
		t.Fatalf("error type = %T, want *WorkerError", err)
	}
	if werr.Unit != 3 {
		t.Errorf("failing unit = %d, want 3", werr.Unit)
	}
}

func TestDispatchContextCancelled(t *testing.T) {
	rv := NewRowValidator(idAgeRules(t))
	d := NewChunkDispatcher(rv, DispatchConfig{Mode: Sequential, ChunkSize: 5}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dispatch(ctx, makeRecords(20), 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSplitUnits(t *testing.T) {
	records := makeRecords(7)
	units := splitUnits(records, 10, 3)

	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	wantOffsets := []int{10, 13, 16}
	wantSizes := []int{3, 3, 1}
	for i, u := range units {
		if u.ordinal != i {
			t.Errorf("unit[%d].ordinal = %d", i, u.ordinal)
		}
		if u.offset != wantOffsets[i] {
			t.Errorf("unit[%d].offset = %d, want %d", i, u.offset, wantOffsets[i])
		}
		if len(u.records) != wantSizes[i] {
			t.Errorf("unit[%d] has %d records, want %d", i, len(u.records), wantSizes[i])
		}
	}
}
