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

// Package rowpipe validates large collections of structured records
// (CSV/JSONL rows) against a declarative schema, producing per-row error
// diagnostics and aggregate statistics with bounded memory and optional
// parallel workers.
package rowpipe

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"os"
	"runtime"

	"github.com/google/uuid"
)

// Validator is the top-level orchestrator: it compiles a schema once, then
// drives the window source, chunk dispatcher and aggregator over an input,
// optionally short-circuiting through the content cache for byte-identical
// inputs.
type Validator struct {
	schema       *Schema
	rules        *RuleSet
	rowValidator RowValidator

	mode       ExecMode
	workers    int
	windowSize int
	chunkSize  int
	progress   ProgressFunc
	cache      *ContentCache
	logger     *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithExecMode selects sequential or parallel unit execution.
func WithExecMode(m ExecMode) Option {
	return func(v *Validator) { v.mode = m }
}

// WithWorkers sets the parallel worker count. Zero means runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(v *Validator) { v.workers = n }
}

// WithWindowSize bounds how many records are resident at once.
func WithWindowSize(n int) Option {
	return func(v *Validator) { v.windowSize = n }
}

// WithChunkSize sets the work unit size within a window.
func WithChunkSize(n int) Option {
	return func(v *Validator) { v.chunkSize = n }
}

// WithProgress installs a per-unit progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(v *Validator) { v.progress = fn }
}

// WithCache enables the content-addressed result cache for file inputs.
func WithCache(c *ContentCache) Option {
	return func(v *Validator) { v.cache = c }
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// NewValidator compiles the schema and builds a validator. Compilation
// problems (e.g. a bad pattern) surface here, before any row is processed.
func NewValidator(schema *Schema, opts ...Option) (*Validator, error) {
	if schema == nil {
		return nil, &SchemaError{Reason: "nil schema"}
	}

	v := &Validator{
		schema:     schema,
		mode:       Parallel,
		workers:    runtime.NumCPU(),
		windowSize: DefaultWindowSize,
		chunkSize:  DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	rules, err := Compile(schema)
	if err != nil {
		return nil, err
	}
	v.rules = rules
	v.rowValidator = NewRowValidator(rules)
	return v, nil
}

// Rules exposes the compiled rule set, shared read-only across workers.
func (v *Validator) Rules() *RuleSet {
	return v.rules
}

// ValidateCSV validates a tabular file with a header line.
func (v *Validator) ValidateCSV(ctx context.Context, path string) (*ValidationResult, error) {
	return v.ValidateFile(ctx, path, FramingCSV)
}

// ValidateJSONL validates a file with one JSON record per line.
func (v *Validator) ValidateJSONL(ctx context.Context, path string) (*ValidationResult, error) {
	return v.ValidateFile(ctx, path, FramingJSONL)
}

// ValidateFile validates a local file. With a cache configured the file's
// bytes are hashed first; a fresh entry returns the cached counts without
// re-reading the data, and a miss validates then stores. Cache failures
// degrade to a miss, never to a validation error.
func (v *Validator) ValidateFile(ctx context.Context, path string, framing Framing) (*ValidationResult, error) {
	logger := v.runLogger()

	var hash string
	if v.cache != nil {
		var err error
		hash, err = HashFile(path)
		if err != nil {
			return nil, err
		}
		if res, ok := v.cache.Lookup(hash); ok {
			logger.Debug("cache hit", "path", path, "hash", hash)
			return res, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := v.validateStream(ctx, logger, f, framing)
	if err != nil {
		return nil, err
	}

	if v.cache != nil {
		if err := v.cache.Store(hash, path, res); err != nil {
			logger.Warn("cache store failed", "path", path, "error", err.Error())
		}
	}
	return res, nil
}

// ValidateReader validates an arbitrary byte stream.
func (v *Validator) ValidateReader(ctx context.Context, r io.Reader, framing Framing) (*ValidationResult, error) {
	return v.validateStream(ctx, v.runLogger(), r, framing)
}

// ValidateRecords validates an in-memory batch.
func (v *Validator) ValidateRecords(ctx context.Context, records []Record) (*ValidationResult, error) {
	logger := v.runLogger()
	res, err := v.dispatcher(logger).Dispatch(ctx, records, 0)
	if err != nil {
		return nil, err
	}
	logger.Debug("batch validated", "rows", res.TotalRows, "invalid", res.InvalidCount)
	return res, nil
}

// ValidateRecord runs the compiled rules against a single record and
// returns its violations with row index 0.
func (v *Validator) ValidateRecord(rec Record) []ValidationError {
	return v.rowValidator.ValidateRow(rec)
}

// Stream yields one aggregated result per window instead of a single
// dataset-wide result, for callers that track running totals themselves.
// Iteration stops at the first framing or worker error.
func (v *Validator) Stream(ctx context.Context, r io.Reader, framing Framing) iter.Seq2[*ValidationResult, error] {
	return func(yield func(*ValidationResult, error) bool) {
		logger := v.runLogger()
		src, err := NewWindowSource(r, framing, v.windowSize)
		if err != nil {
			yield(nil, err)
			return
		}
		defer src.Close()

		disp := v.dispatcher(logger)
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			w, err := src.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			res, err := disp.Dispatch(ctx, w.Records, w.Offset)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(res, nil) {
				return
			}
		}
	}
}

func (v *Validator) validateStream(ctx context.Context, logger *slog.Logger, r io.Reader, framing Framing) (*ValidationResult, error) {
	src, err := NewWindowSource(r, framing, v.windowSize)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	disp := v.dispatcher(logger)
	final := &ValidationResult{}
	windows := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Error("stream aborted", "window", windows, "error", err.Error())
			return nil, err
		}

		res, err := disp.Dispatch(ctx, w.Records, w.Offset)
		if err != nil {
			return nil, err
		}
		final.Merge(res)
		windows++
	}

	logger.Info("validation completed",
		"framing", string(framing),
		"windows", windows,
		"total_rows", final.TotalRows,
		"valid", final.ValidCount,
		"invalid", final.InvalidCount)
	return final, nil
}

func (v *Validator) dispatcher(logger *slog.Logger) *ChunkDispatcher {
	return NewChunkDispatcher(v.rowValidator, DispatchConfig{
		Mode:      v.mode,
		Workers:   v.workers,
		ChunkSize: v.chunkSize,
		Progress:  v.progress,
	}, logger)
}

func (v *Validator) runLogger() *slog.Logger {
	return v.logger.With("run_id", uuid.NewString())
}
