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

// Rowpipe validates CSV/JSONL datasets against a declarative schema.
//
// Usage:
//
//	# Validate a local CSV file
//	rowpipe validate --schema schema.yaml --input data.csv
//
//	# Validate a JSONL object in S3 and write the report locally
//	rowpipe validate --schema schema.yaml --s3 s3://bucket/data.jsonl --output report.json
//
//	# Sequential run with a custom chunk size, no cache
//	rowpipe validate -s schema.yaml -i data.csv --sequential --chunk-size 1000 --no-cache
package main

func main() {
	Execute()
}
