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
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const manifestFileName = "manifest.json"

// DefaultCacheTTL is the entry lifetime used when a caller passes 0.
const DefaultCacheTTL = 24 * time.Hour

// DefaultCacheMaxBytes is the payload byte budget used when a caller
// passes 0.
const DefaultCacheMaxBytes = 500 * 1024 * 1024

// HashReader streams r through SHA-256 and returns the hex digest. The full
// input is hashed byte-for-byte: a single changed byte must produce a
// different cache key.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile returns the SHA-256 hex digest of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HashReader(f)
}

// HashBytes returns the SHA-256 hex digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type manifestEntry struct {
	SourcePath  string    `json:"source_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	PayloadFile string    `json:"payload_file"`
}

type cachePayload struct {
	Hash         string    `json:"hash"`
	CreatedAt    time.Time `json:"created_at"`
	ValidCount   int       `json:"valid_count"`
	InvalidCount int       `json:"invalid_count"`
	TotalRows    int       `json:"total_rows"`
	SuccessRate  float64   `json:"success_rate"`
}

// CacheStats summarizes the cache contents.
type CacheStats struct {
	Entries    int
	SizeBytes  int64
	Dir        string
	TTL        time.Duration
	BudgetSize int64
}

// ContentCache maps a content hash of an input's bytes to a previously
// computed validation result, so re-validating byte-identical input is
// near-free. Only aggregate counts are persisted; the error list is not,
// which keeps payloads tiny.
//
// Layout: one manifest.json (the single source of truth for which entries
// exist) plus one <hash>.json payload per entry. Manifest persistence is
// last-writer-wins; concurrent writers from other processes are out of
// scope. Any unreadable manifest or payload is logged and treated as a
// miss, never as a fatal error.
type ContentCache struct {
	dir      string
	ttl      time.Duration
	maxBytes int64
	logger   *slog.Logger

	mu       sync.Mutex
	manifest map[string]manifestEntry

	now func() time.Time
}

// NewContentCache opens (creating if needed) a cache directory. Zero ttl
// and maxBytes select the defaults. A nil logger discards log output.
func NewContentCache(dir string, ttl time.Duration, maxBytes int64, logger *slog.Logger) (*ContentCache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxBytes <= 0 {
		maxBytes = DefaultCacheMaxBytes
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	c := &ContentCache{
		dir:      dir,
		ttl:      ttl,
		maxBytes: maxBytes,
		logger:   logger,
		manifest: map[string]manifestEntry{},
		now:      time.Now,
	}
	c.loadManifest()
	return c, nil
}

func (c *ContentCache) loadManifest() {
	data, err := os.ReadFile(filepath.Join(c.dir, manifestFileName))
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		c.logger.Warn("cache degraded", "error", (&CacheError{Op: "read manifest", Err: err}).Error())
		return
	}
	if err := json.Unmarshal(data, &c.manifest); err != nil {
		// Start over with an empty manifest; stale payload files get
		// rewritten or evicted on subsequent stores.
		c.logger.Warn("cache degraded", "error", (&CacheError{Op: "decode manifest", Err: err}).Error())
		c.manifest = map[string]manifestEntry{}
	}
}

func (c *ContentCache) saveManifest() {
	data, err := json.MarshalIndent(c.manifest, "", "  ")
	if err != nil {
		c.logger.Warn("cache degraded", "error", (&CacheError{Op: "encode manifest", Err: err}).Error())
		return
	}
	if err := os.WriteFile(filepath.Join(c.dir, manifestFileName), data, 0o644); err != nil {
		c.logger.Warn("cache degraded", "error", (&CacheError{Op: "write manifest", Err: err}).Error())
	}
}

func (c *ContentCache) payloadPath(hash string) string {
	return filepath.Join(c.dir, hash+".json")
}

// Lookup returns the cached counts-only result for a content hash. An
// absent or expired entry, or an unreadable payload, is a miss.
func (c *ContentCache) Lookup(hash string) (*ValidationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.manifest[hash]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.CreatedAt) >= c.ttl {
		c.removeEntry(hash)
		c.saveManifest()
		return nil, false
	}

	data, err := os.ReadFile(c.payloadPath(hash))
	if err != nil {
		c.logger.Warn("cache degraded", "error", (&CacheError{Op: "read payload", Err: err}).Error())
		return nil, false
	}
	var payload cachePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.Warn("cache degraded", "error", (&CacheError{Op: "decode payload", Err: err}).Error())
		return nil, false
	}

	// The error list is not persisted; a hit reproduces counts only.
	return &ValidationResult{
		ValidCount:   payload.ValidCount,
		InvalidCount: payload.InvalidCount,
		TotalRows:    payload.TotalRows,
	}, true
}

// Store persists the aggregate counts of a result under a content hash,
// then purges expired entries and evicts oldest-first while the payload
// bytes exceed the budget.
func (c *ContentCache) Store(hash, sourcePath string, res *ValidationResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	createdAt := c.now()
	payload := cachePayload{
		Hash:         hash,
		CreatedAt:    createdAt,
		ValidCount:   res.ValidCount,
		InvalidCount: res.InvalidCount,
		TotalRows:    res.TotalRows,
		SuccessRate:  res.SuccessRate(),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return &CacheError{Op: "encode payload", Err: err}
	}
	if err := os.WriteFile(c.payloadPath(hash), data, 0o644); err != nil {
		return &CacheError{Op: "write payload", Err: err}
	}

	c.manifest[hash] = manifestEntry{
		SourcePath:  sourcePath,
		CreatedAt:   createdAt,
		PayloadFile: hash + ".json",
	}

	c.cleanup()
	c.saveManifest()
	return nil
}

// Invalidate drops the entry for a content hash, if present.
func (c *ContentCache) Invalidate(hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.manifest[hash]; !ok {
		return nil
	}
	c.removeEntry(hash)
	c.saveManifest()
	return nil
}

// Clear drops every entry and payload.
func (c *ContentCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for hash := range c.manifest {
		c.removeEntry(hash)
	}
	c.manifest = map[string]manifestEntry{}
	c.saveManifest()
	return nil
}

// Stats reports entry count and accumulated payload size.
func (c *ContentCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Entries:    len(c.manifest),
		SizeBytes:  c.payloadBytes(),
		Dir:        c.dir,
		TTL:        c.ttl,
		BudgetSize: c.maxBytes,
	}
}

// cleanup removes expired entries, then enforces the byte budget by
// evicting earliest-created entries first. Callers hold c.mu.
func (c *ContentCache) cleanup() {
	now := c.now()
	for hash, entry := range c.manifest {
		if now.Sub(entry.CreatedAt) >= c.ttl {
			c.removeEntry(hash)
		}
	}

	size := c.payloadBytes()
	if size <= c.maxBytes {
		return
	}

	type aged struct {
		hash      string
		createdAt time.Time
	}
	entries := make([]aged, 0, len(c.manifest))
	for hash, entry := range c.manifest {
		entries = append(entries, aged{hash: hash, createdAt: entry.CreatedAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].createdAt.Before(entries[j].createdAt) })

	for _, e := range entries {
		if size <= c.maxBytes {
			break
		}
		if info, err := os.Stat(c.payloadPath(e.hash)); err == nil {
			size -= info.Size()
		}
		c.removeEntry(e.hash)
	}
}

func (c *ContentCache) payloadBytes() int64 {
	var size int64
	for hash := range c.manifest {
		if info, err := os.Stat(c.payloadPath(hash)); err == nil {
			size += info.Size()
		}
	}
	return size
}

func (c *ContentCache) removeEntry(hash string) {
	if err := os.Remove(c.payloadPath(hash)); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("cache degraded", "error", (&CacheError{Op: "remove payload", Err: err}).Error())
	}
	delete(c.manifest, hash)
}
