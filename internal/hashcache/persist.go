package hashcache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

const documentVersion = 1

// document is the persisted shape of the cache: a version, two arrays of
// [key, entry] pairs, the last cleanup time, and cumulative stats.
type document struct {
	Version       int               `json:"version"`
	FileEntries   []fileEntryPair   `json:"fileEntries"`
	SymbolEntries []symbolEntryPair `json:"symbolEntries"`
	LastCleanup   time.Time         `json:"lastCleanup"`
	Stats         persistedStats    `json:"stats"`
}

type persistedStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

type fileEntryPair struct {
	Key   string
	Entry FileEntry
}

func (p fileEntryPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.Entry})
}

func (p *fileEntryPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.Key); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Entry)
}

type symbolEntryPair struct {
	Key   string
	Entry SymbolEntry
}

func (p symbolEntryPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.Entry})
}

func (p *symbolEntryPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.Key); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Entry)
}

// load reads the backing document. Any failure leaves the cache empty;
// a cold cache just means a full recompute.
func (c *Cache) load() {
	data, err := os.ReadFile(c.opts.Path)
	if err != nil {
		return
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("Warning: discarding corrupt hash cache at %s: %v", c.opts.Path, err)
		return
	}

	for _, pair := range doc.FileEntries {
		c.files[pair.Key] = pair.Entry
	}
	for _, pair := range doc.SymbolEntries {
		c.symbols[pair.Key] = pair.Entry
	}
	c.lastCleanup = doc.LastCleanup
	c.hits = doc.Stats.Hits
	c.misses = doc.Stats.Misses
}

// scheduleFlushLocked coalesces mutations into one deferred write. With a
// zero delay the document is written before the mutating call returns.
func (c *Cache) scheduleFlushLocked() {
	if c.opts.Path == "" {
		return
	}
	if c.opts.FlushDelay <= 0 {
		if err := writeDocument(c.opts.Path, c.snapshotLocked()); err != nil {
			log.Printf("Warning: %v", err)
		}
		return
	}
	if c.flushTimer != nil {
		return
	}
	c.flushTimer = time.AfterFunc(c.opts.FlushDelay, c.flush)
}

func (c *Cache) flush() {
	c.mu.Lock()
	c.flushTimer = nil
	doc := c.snapshotLocked()
	path := c.opts.Path
	c.mu.Unlock()

	if err := writeDocument(path, doc); err != nil {
		log.Printf("Warning: %v", err)
	}
}

func (c *Cache) snapshotLocked() document {
	doc := document{
		Version:     documentVersion,
		LastCleanup: c.lastCleanup,
		Stats:       persistedStats{Hits: c.hits, Misses: c.misses},
	}
	for key, entry := range c.files {
		doc.FileEntries = append(doc.FileEntries, fileEntryPair{Key: key, Entry: entry})
	}
	for key, entry := range c.symbols {
		doc.SymbolEntries = append(doc.SymbolEntries, symbolEntryPair{Key: key, Entry: entry})
	}
	return doc
}

// writeDocument rewrites the whole document atomically: write a temp file
// next to the target, then rename over it. A half-written temp file can
// never shadow a valid cache.
func writeDocument(path string, doc document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode hash cache: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write hash cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace hash cache: %w", err)
	}
	return nil
}
