package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// RecordCache keeps the per-file records of earlier extractions so repeated
// runs over a mostly unchanged tree, as in watch mode, only parse what
// changed. Entries are keyed by path and only served for an identical hash.
type RecordCache struct {
	entries map[string]ClassMetadata
	mu      sync.RWMutex
}

// NewRecordCache creates an empty cache
func NewRecordCache() *RecordCache {
	return &RecordCache{entries: make(map[string]ClassMetadata)}
}

// Get returns a fresh copy of the record for path when its content hash is
// still hash. Derived pooling facts are always unset on the copy.
func (c *RecordCache) Get(path, hash string) (*ClassMetadata, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	meta, ok := c.entries[path]
	if !ok || meta.Hash != hash {
		return nil, false
	}
	return &meta, true
}

// Set stores the undecorated part of meta
func (c *RecordCache) Set(meta *ClassMetadata) {
	if c == nil {
		return
	}
	record := *meta
	record.Poolable = false
	record.AlreadyPooled = false
	record.Root = false
	record.EffectiveSuperclassName = ""

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[meta.Path] = record
}

// Retain drops every entry whose path is not in paths and returns how many
// were dropped
func (c *RecordCache) Retain(paths []string) int {
	if c == nil {
		return 0
	}
	keep := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		keep[p] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pruned := 0
	for path := range c.entries {
		if _, ok := keep[path]; !ok {
			delete(c.entries, path)
			pruned++
		}
	}
	return pruned
}

// Size returns the number of cached entries
func (c *RecordCache) Size() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// HashData returns the hex SHA-256 of data
func HashData(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
