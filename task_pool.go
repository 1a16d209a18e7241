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
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// unitPool runs validation work units on a semaphore-bounded set of
// goroutines. A unit that panics is recorded as a *WorkerError; the pool
// keeps draining so sibling units finish cleanly before the dispatch fails.
type unitPool struct {
	semaphore chan struct{}
	logger    *slog.Logger
	wg        sync.WaitGroup
	mu        sync.Mutex
	failures  []error
}

func newUnitPool(poolSize int, logger *slog.Logger) *unitPool {
	if poolSize < 1 {
		poolSize = 1
	}
	if logger == nil {
		// noop logger by default
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &unitPool{
		semaphore: make(chan struct{}, poolSize),
		logger:    logger,
	}
}

// enqueue schedules one work unit. If ctx is already cancelled by the time
// the unit acquires a slot, the unit is skipped; in-flight units are never
// interrupted.
func (up *unitPool) enqueue(ctx context.Context, unit int, run func() *ValidationResult, done func(unit int, res *ValidationResult)) {
	up.wg.Add(1)
	go func() {
		up.semaphore <- struct{}{}
		defer func() {
			<-up.semaphore
			up.wg.Done()
		}()

		if ctx.Err() != nil {
			return
		}

		defer func() {
			if r := recover(); r != nil {
				up.fail(&WorkerError{Unit: unit, Err: fmt.Errorf("panic: %v", r)})
			}
		}()

		up.logger.Debug("validating unit", "unit", unit)
		startTime := time.Now()
		res := run()
		elapsed := time.Since(startTime).Milliseconds()
		up.logger.Debug("completed unit", "unit", unit, "rows", res.TotalRows, "elapsed_ms", elapsed)

		done(unit, res)
	}()
}

// join waits for all enqueued units to finish.
func (up *unitPool) join() {
	up.wg.Wait()
}

func (up *unitPool) fail(err error) {
	up.logger.Error("unit failed", "error", err.Error())
	up.mu.Lock()
	up.failures = append(up.failures, err)
	up.mu.Unlock()
}

func (up *unitPool) errors() []error {
	up.mu.Lock()
	defer up.mu.Unlock()

	errsCopy := make([]error, len(up.failures))
	copy(errsCopy, up.failures)
	return errsCopy
}
