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
	"context"
	"io"
	"log/slog"
	"runtime"
)

// ExecMode selects how work units are executed.
type ExecMode int

const (
	// Sequential runs units one after another on the calling goroutine.
	Sequential ExecMode = iota
	// Parallel runs units on a bounded worker pool.
	Parallel
)

// DefaultChunkSize is the work unit size used when a caller passes 0.
const DefaultChunkSize = 5000

// ProgressFunc is invoked after each work unit completes, with the unit's
// ordinal, the total unit count of the dispatch, and running valid/invalid
// totals. Invocations are serialized in completion order, which under a
// worker pool is not necessarily submission order. A panicking callback is
// recovered and never aborts validation.
type ProgressFunc func(unitIndex, totalUnits, validSoFar, invalidSoFar int)

// DispatchConfig configures a ChunkDispatcher.
type DispatchConfig struct {
	Mode      ExecMode
	Workers   int // parallel worker count, 0 means runtime.NumCPU()
	ChunkSize int // records per work unit, 0 means DefaultChunkSize
	Progress  ProgressFunc
}

// ChunkDispatcher partitions record batches into fixed-size work units and
// runs the row validator over them. Each unit carries a stable absolute row
// offset, so error row indices stay globally correct no matter how the pool
// schedules units.
type ChunkDispatcher struct {
	validator RowValidator
	cfg       DispatchConfig
	logger    *slog.Logger
}

func NewChunkDispatcher(validator RowValidator, cfg DispatchConfig, logger *slog.Logger) *ChunkDispatcher {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ChunkDispatcher{validator: validator, cfg: cfg, logger: logger}
}

type workUnit struct {
	ordinal int
	offset  int // absolute index of the unit's first record
	records []Record
}

type unitCompletion struct {
	unit   int
	result *ValidationResult
}

// Dispatch validates records, whose first record sits at absolute row index
// baseOffset, and returns the aggregated result. On a worker failure or
// cancellation no result is returned; partial results are discarded rather
// than reported as an incomplete summary.
func (d *ChunkDispatcher) Dispatch(ctx context.Context, records []Record, baseOffset int) (*ValidationResult, error) {
	units := splitUnits(records, baseOffset, d.cfg.ChunkSize)
	if len(units) == 0 {
		return &ValidationResult{}, nil
	}

	if d.cfg.Mode == Sequential {
		return d.dispatchSequential(ctx, units)
	}
	return d.dispatchParallel(ctx, units)
}

func (d *ChunkDispatcher) dispatchSequential(ctx context.Context, units []workUnit) (*ValidationResult, error) {
	partials := make([]Partial, 0, len(units))
	validSoFar, invalidSoFar := 0, 0

	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := d.validateUnit(u)
		partials = append(partials, Partial{Unit: u.ordinal, Result: res})
		validSoFar += res.ValidCount
		invalidSoFar += res.InvalidCount
		d.notifyProgress(u.ordinal, len(units), validSoFar, invalidSoFar)
	}

	return Aggregate(partials), nil
}

func (d *ChunkDispatcher) dispatchParallel(ctx context.Context, units []workUnit) (*ValidationResult, error) {
	pool := newUnitPool(d.cfg.Workers, d.logger)

	// Buffered to the full unit count so completing workers never block on
	// the drain goroutine, and the drain goroutine alone serializes
	// progress callbacks in completion order.
	completions := make(chan unitCompletion, len(units))
	drained := make(chan []Partial, 1)

	go func() {
		partials := make([]Partial, 0, len(units))
		validSoFar, invalidSoFar := 0, 0
		for c := range completions {
			partials = append(partials, Partial{Unit: c.unit, Result: c.result})
			validSoFar += c.result.ValidCount
			invalidSoFar += c.result.InvalidCount
			d.notifyProgress(c.unit, len(units), validSoFar, invalidSoFar)
		}
		drained <- partials
	}()

	for _, u := range units {
		if ctx.Err() != nil {
			// Stop submitting; whatever is in flight is allowed to finish.
			break
		}
		unit := u
		pool.enqueue(ctx, unit.ordinal,
			func() *ValidationResult { return d.validateUnit(unit) },
			func(ordinal int, res *ValidationResult) {
				completions <- unitCompletion{unit: ordinal, result: res}
			})
	}

	pool.join()
	close(completions)
	partials := <-drained

	if errs := pool.errors(); len(errs) > 0 {
		return nil, errs[0]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Aggregate(partials), nil
}

func (d *ChunkDispatcher) validateUnit(u workUnit) *ValidationResult {
	res := &ValidationResult{TotalRows: len(u.records)}
	for i, rec := range u.records {
		rowErrs := d.validator.ValidateRow(rec)
		if len(rowErrs) == 0 {
			res.ValidCount++
			continue
		}
		res.InvalidCount++
		for _, e := range rowErrs {
			e.RowIndex = u.offset + i
			res.Errors = append(res.Errors, e)
		}
	}
	return res
}

func (d *ChunkDispatcher) notifyProgress(unitIndex, totalUnits, validSoFar, invalidSoFar int) {
	if d.cfg.Progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("progress callback panicked", "unit", unitIndex, "panic", r)
		}
	}()
	d.cfg.Progress(unitIndex, totalUnits, validSoFar, invalidSoFar)
}

func splitUnits(records []Record, baseOffset, chunkSize int) []workUnit {
	var units []workUnit
	for start := 0; start < len(records); start += chunkSize {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}
		units = append(units, workUnit{
			ordinal: len(units),
			offset:  baseOffset + start,
			records: records[start:end],
		})
	}
	return units
}
