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
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const Version = "v0.1.0"

var verbose bool

// envConfig holds runtime defaults that can be set through the environment
// instead of flags.
type envConfig struct {
	CacheDir      string        `env:"ROWPIPE_CACHE_DIR" envDefault:".rowpipe_cache"`
	CacheTTL      time.Duration `env:"ROWPIPE_CACHE_TTL" envDefault:"24h"`
	CacheMaxBytes int64         `env:"ROWPIPE_CACHE_MAX_BYTES" envDefault:"524288000"`
	Workers       int           `env:"ROWPIPE_WORKERS" envDefault:"0"`
	AWSRegion     string        `env:"AWS_REGION" envDefault:"us-east-1"`
}

func loadEnvConfig() (envConfig, error) {
	// A missing .env file is fine; the environment alone is enough.
	_ = godotenv.Load()

	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return envConfig{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

var rootCmd = &cobra.Command{
	Use:   "rowpipe",
	Short: "Rowpipe - schema validation for large CSV/JSONL datasets",
	Long: `Rowpipe validates collections of structured records against a declarative
schema, producing per-row error diagnostics and aggregate statistics.

It scales from single records to files far larger than memory:
  - Declarative YAML schemas with typed field constraints
  - Windowed streaming with bounded memory
  - Parallel chunk validation on a bounded worker pool
  - Content-addressed result caching for unchanged inputs
  - Local files and S3 objects as inputs`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
