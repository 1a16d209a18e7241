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

// Package sources provides opaque byte sources the validation pipeline can
// read framed records from: local files and S3 objects.
package sources

import (
	"context"
	"io"
)

// ByteSource opens a named input as a forward-only byte stream. The
// validation engine treats the bytes as opaque; framing happens downstream.
type ByteSource interface {
	// Open returns the stream. The caller owns the returned reader and must
	// close it.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name identifies the source for logs and cache manifests.
	Name() string
}
