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
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// Framing selects how a byte stream is split into records.
type Framing string

const (
	// FramingCSV frames tabular text: a header line naming fields, then one
	// record per line with string values.
	FramingCSV Framing = "csv"
	// FramingJSONL frames one self-describing JSON object per line.
	FramingJSONL Framing = "jsonl"
)

// DefaultWindowSize is the window size used when a caller passes 0.
const DefaultWindowSize = 10000

// Window is a bounded batch of records. Offset is the absolute zero-based
// index of the first record within the overall stream.
type Window struct {
	Offset  int
	Records []Record
}

// WindowSource yields successive windows from an underlying byte stream.
// It is forward-only; restarting means reopening the stream. Resident
// memory is bounded by the window size, never the dataset size.
type WindowSource interface {
	// Next returns the next window, io.EOF when the stream is exhausted, or
	// a *FramingError when a line cannot be parsed. After a framing error
	// the source is dead: the error repeats on every subsequent call.
	Next() (*Window, error)
	Close() error
}

// NewWindowSource frames r according to f with windows of at most
// windowSize records.
func NewWindowSource(r io.Reader, f Framing, windowSize int) (WindowSource, error) {
	switch f {
	case FramingCSV:
		return NewCSVWindowSource(r, windowSize), nil
	case FramingJSONL:
		return NewJSONLWindowSource(r, windowSize), nil
	default:
		return nil, fmt.Errorf("unsupported framing: %q", f)
	}
}

//

// CSVWindowSource frames tabular text. The first line is the header; every
// record maps header names to raw string values.
type CSVWindowSource struct {
	reader     *csv.Reader
	underlying io.Reader
	windowSize int
	header     []string
	offset     int
	err        error
	done       bool
}

func NewCSVWindowSource(r io.Reader, windowSize int) *CSVWindowSource {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	return &CSVWindowSource{
		reader:     cr,
		underlying: r,
		windowSize: windowSize,
	}
}

func (s *CSVWindowSource) Next() (*Window, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.done {
		return nil, io.EOF
	}

	if s.header == nil {
		header, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			return nil, io.EOF
		}
		if err != nil {
			s.err = wrapCSVError(err)
			return nil, s.err
		}
		s.header = make([]string, len(header))
		copy(s.header, header)
	}

	records := make([]Record, 0, s.windowSize)
	for len(records) < s.windowSize {
		row, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			break
		}
		if err != nil {
			s.err = wrapCSVError(err)
			return nil, s.err
		}

		rec := make(Record, len(s.header))
		for i, name := range s.header {
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, io.EOF
	}

	w := &Window{Offset: s.offset, Records: records}
	s.offset += len(records)
	return w, nil
}

func (s *CSVWindowSource) Close() error {
	return closeIfCloser(s.underlying)
}

func wrapCSVError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &FramingError{Line: perr.Line, Err: err}
	}
	return &FramingError{Err: err}
}

//

// JSONLWindowSource frames one JSON object per line. Blank lines are
// skipped; a malformed line aborts the stream, since dropping it would
// corrupt row-index accounting downstream.
type JSONLWindowSource struct {
	scanner    *bufio.Scanner
	underlying io.Reader
	windowSize int
	line       int
	offset     int
	err        error
	done       bool
}

const maxLineBytes = 16 * 1024 * 1024

func NewJSONLWindowSource(r io.Reader, windowSize int) *JSONLWindowSource {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &JSONLWindowSource{
		scanner:    sc,
		underlying: r,
		windowSize: windowSize,
	}
}

func (s *JSONLWindowSource) Next() (*Window, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.done {
		return nil, io.EOF
	}

	records := make([]Record, 0, s.windowSize)
	for len(records) < s.windowSize {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				s.err = &FramingError{Line: s.line + 1, Err: err}
				return nil, s.err
			}
			s.done = true
			break
		}
		s.line++

		line := s.scanner.Bytes()
		if len(trimSpaceBytes(line)) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			s.err = &FramingError{Line: s.line, Err: err}
			return nil, s.err
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, io.EOF
	}

	w := &Window{Offset: s.offset, Records: records}
	s.offset += len(records)
	return w, nil
}

func (s *JSONLWindowSource) Close() error {
	return closeIfCloser(s.underlying)
}

func trimSpaceBytes(b []byte) []byte {
	start := 0
	for start < len(b) && (b[start] == ' ' || b[start] == '\t' || b[start] == '\r') {
		start++
	}
	end := len(b)
	for end > start && (b[end-1] == ' ' || b[end-1] == '\t' || b[end-1] == '\r') {
		end--
	}
	return b[start:end]
}

func closeIfCloser(r io.Reader) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
