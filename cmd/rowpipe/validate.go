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

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rowpipehq/rowpipe"
	"github.com/rowpipehq/rowpipe/sources"
)

var (
	schemaPath string
	inputPath  string
	s3URI      string
	outputPath string
	format     string
	workers    int
	chunkSize  int
	windowSize int
	sequential bool
	noCache    bool
	maxErrors  int
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a CSV/JSONL dataset against a schema",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "schema YAML file (required)")
	validateCmd.Flags().StringVarP(&inputPath, "input", "i", "", "input file to validate")
	validateCmd.Flags().StringVar(&s3URI, "s3", "", "S3 URI (s3://bucket/key) to validate")
	validateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the JSON report to this file")
	validateCmd.Flags().StringVar(&format, "format", "", "input framing: csv or jsonl (default: from file extension)")
	validateCmd.Flags().IntVar(&workers, "workers", 0, "parallel worker count (0 = number of CPUs)")
	validateCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "records per work unit")
	validateCmd.Flags().IntVar(&windowSize, "window-size", 0, "records resident in memory at once")
	validateCmd.Flags().BoolVar(&sequential, "sequential", false, "disable parallel processing")
	validateCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the validation result cache")
	validateCmd.Flags().IntVar(&maxErrors, "max-errors", 20, "errors to print (0 = all)")
	_ = validateCmd.MarkFlagRequired("schema")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()

	if (inputPath == "") == (s3URI == "") {
		return fmt.Errorf("exactly one of --input or --s3 must be provided")
	}

	envCfg, err := loadEnvConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	schema, err := rowpipe.LoadSchemaFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	framing, err := resolveFraming()
	if err != nil {
		return err
	}

	mode := rowpipe.Parallel
	if sequential {
		mode = rowpipe.Sequential
	}
	if workers == 0 {
		workers = envCfg.Workers
	}

	opts := []rowpipe.Option{
		rowpipe.WithExecMode(mode),
		rowpipe.WithWorkers(workers),
		rowpipe.WithChunkSize(chunkSize),
		rowpipe.WithWindowSize(windowSize),
		rowpipe.WithLogger(logger),
	}
	if !noCache && inputPath != "" {
		cache, err := rowpipe.NewContentCache(envCfg.CacheDir, envCfg.CacheTTL, envCfg.CacheMaxBytes, logger)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		opts = append(opts, rowpipe.WithCache(cache))
	}

	validator, err := rowpipe.NewValidator(schema, opts...)
	if err != nil {
		return err
	}

	var result *rowpipe.ValidationResult
	if inputPath != "" {
		result, err = validator.ValidateFile(ctx, inputPath, framing)
	} else {
		bucket, key, perr := sources.ParseS3URI(s3URI)
		if perr != nil {
			return perr
		}
		client, cerr := sources.NewS3Client(ctx, sources.S3Config{Region: envCfg.AWSRegion})
		if cerr != nil {
			return cerr
		}
		obj := sources.NewS3Object(client, bucket, key)
		body, oerr := obj.Open(ctx)
		if oerr != nil {
			return oerr
		}
		defer body.Close()
		result, err = validator.ValidateReader(ctx, body, framing)
	}
	if err != nil {
		return err
	}

	fmt.Println(result.Summary())
	printErrors(result)

	if outputPath != "" {
		if err := result.SaveReport(outputPath); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", outputPath)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	return nil
}

func printErrors(result *rowpipe.ValidationResult) {
	if len(result.Errors) == 0 {
		return
	}
	limit := maxErrors
	if limit <= 0 || limit > len(result.Errors) {
		limit = len(result.Errors)
	}
	fmt.Println("Errors:")
	for _, e := range result.Errors[:limit] {
		fmt.Printf("  %s\n", e)
	}
	if limit < len(result.Errors) {
		fmt.Printf("  ... and %d more\n", len(result.Errors)-limit)
	}
}

func resolveFraming() (rowpipe.Framing, error) {
	name := inputPath
	if name == "" {
		name = s3URI
	}
	switch strings.ToLower(format) {
	case "csv":
		return rowpipe.FramingCSV, nil
	case "jsonl", "json":
		return rowpipe.FramingJSONL, nil
	case "":
		if strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".ndjson") || strings.HasSuffix(name, ".json") {
			return rowpipe.FramingJSONL, nil
		}
		return rowpipe.FramingCSV, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want csv or jsonl)", format)
	}
}
