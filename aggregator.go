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

import "sort"

// Partial is one work unit's self-contained result, tagged with the unit's
// ordinal position in the dispatch.
type Partial struct {
	Unit   int
	Result *ValidationResult
}

// Aggregate merges partial results into one final result. Counts sum in any
// order; the error list is restored to ascending row-index order by sorting
// partials on their unit ordinal, so the output is identical no matter how
// the worker pool scheduled completions.
func Aggregate(partials []Partial) *ValidationResult {
	sorted := make([]Partial, len(partials))
	copy(sorted, partials)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Unit < sorted[j].Unit })

	final := &ValidationResult{}
	for _, p := range sorted {
		final.Merge(p.Result)
	}
	return final
}
