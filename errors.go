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

import "fmt"

// SchemaError reports a problem detected while building or compiling a
// schema, e.g. an unparsable pattern or a duplicate field name. It is always
// raised before any row is processed.
type SchemaError struct {
	Field  string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: %s", e.Reason)
	}
	return fmt.Sprintf("schema: field %q: %s", e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// FramingError reports a malformed line in the input stream. Framing
// problems are fatal for the stream: row-index accounting cannot survive a
// silently dropped line.
type FramingError struct {
	Line int // 1-based line number in the input
	Err  error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing: line %d: %v", e.Line, e.Err)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// WorkerError reports an unexpected failure inside a validation work unit.
// It aborts the dispatch it occurred in; partial results from sibling units
// are discarded rather than reported as an incomplete summary.
type WorkerError struct {
	Unit int
	Err  error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker: unit %d: %v", e.Unit, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// CacheError wraps a degraded cache operation. Cache errors are logged and
// treated as a miss; they never abort validation.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache: %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}
