package hashcache

import (
	"fmt"
	"sync"
	"time"

	"docsync/internal/corpus"

	"github.com/zeebo/xxh3"
)

// FileEntry caches the content and symbol hashes of one file.
// An entry is valid only while its stored hash equals the hash of the
// current content; staleness is detected by recomputation, not by age.
type FileEntry struct {
	FilePath    string    `json:"file_path"`
	ContentHash string    `json:"content_hash"`
	SymbolHash  string    `json:"symbol_hash"`
	SymbolCount int       `json:"symbol_count"`
	FileSize    int64     `json:"file_size"`
	CachedAt    time.Time `json:"cached_at"`
}

// SymbolEntry caches the hashes of one symbol, keyed by path:name:kind.
// Signature and description are hashed separately so an unchanged
// signature with a changed doc comment is still distinguishable.
type SymbolEntry struct {
	SymbolID        string    `json:"symbol_id"`
	SignatureHash   string    `json:"signature_hash"`
	DescriptionHash string    `json:"description_hash"`
	CombinedHash    string    `json:"combined_hash"`
	CachedAt        time.Time `json:"cached_at"`
}

// FileHashes is the result of a file-level lookup.
type FileHashes struct {
	ContentHash string
	SymbolHash  string
}

// SymbolChanges reconciles the current symbols of one file against the
// cached identities for that file. Deleted carries symbol IDs because the
// symbols themselves no longer exist.
type SymbolChanges struct {
	Added    []corpus.Symbol
	Modified []corpus.Symbol
	Deleted  []string
}

// Stats reports cumulative cache effectiveness.
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	TotalRequests int64   `json:"total_requests"`
}

// Options tunes cache persistence and eviction.
type Options struct {
	Path       string        // Backing JSON document; empty disables persistence
	MaxAge     time.Duration // Entries older than this are purged during a sweep
	MaxEntries int           // Entry count that triggers an eviction sweep
	FlushDelay time.Duration // Coalescing window for persistence writes; 0 writes synchronously
}

// DefaultOptions returns the tuning the sync pipeline uses.
func DefaultOptions(path string) Options {
	return Options{
		Path:       path,
		MaxAge:     7 * 24 * time.Hour,
		MaxEntries: 10000,
		FlushDelay: 500 * time.Millisecond,
	}
}

// Cache is a content-addressable memo of file and symbol hashes used to
// short-circuit redundant diff work. A missing or corrupt backing file
// degrades to an empty cache; no operation surfaces an I/O error.
type Cache struct {
	mu          sync.Mutex
	opts        Options
	files       map[string]FileEntry
	symbols     map[string]SymbolEntry
	hits        int64
	misses      int64
	lastCleanup time.Time

	flushTimer *time.Timer
}

// New creates a cache, eagerly loading the backing document if present.
func New(opts Options) *Cache {
	c := &Cache{
		opts:    opts,
		files:   make(map[string]FileEntry),
		symbols: make(map[string]SymbolEntry),
	}
	if opts.Path != "" {
		c.load()
	}
	return c
}

// Digest returns the fast, non-cryptographic content hash used throughout
// the engine: a 16-hex-char xxh3 digest.
func Digest(s string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(s))
}

// SymbolID builds the cache key for a symbol within a file.
func SymbolID(filePath, name, kind string) string {
	return filePath + ":" + name + ":" + kind
}

// GetOrComputeFileHash returns the content and symbol hashes for a file,
// serving from cache when the stored content hash still matches.
func (c *Cache) GetOrComputeFileHash(file corpus.FileRecord) FileHashes {
	contentHash := Digest(file.Content)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.files[file.Path]; ok && entry.ContentHash == contentHash {
		c.hits++
		return FileHashes{ContentHash: entry.ContentHash, SymbolHash: entry.SymbolHash}
	}

	c.misses++
	symbolHash := c.computeSymbolHashLocked(file)
	c.files[file.Path] = FileEntry{
		FilePath:    file.Path,
		ContentHash: contentHash,
		SymbolHash:  symbolHash,
		SymbolCount: len(file.Symbols),
		FileSize:    int64(len(file.Content)),
		CachedAt:    time.Now(),
	}
	c.maybeEvictLocked()
	c.scheduleFlushLocked()
	return FileHashes{ContentHash: contentHash, SymbolHash: symbolHash}
}

// GetOrComputeSymbolHash returns the combined hash for a symbol, serving
// from cache when the stored signature and description hashes still match.
func (c *Cache) GetOrComputeSymbolHash(sym corpus.Symbol, filePath string) string {
	id := SymbolID(filePath, sym.Name, sym.Kind)
	sigHash := Digest(sym.Signature)
	descHash := Digest(sym.Description)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.symbols[id]; ok && entry.SignatureHash == sigHash && entry.DescriptionHash == descHash {
		c.hits++
		return entry.CombinedHash
	}

	c.misses++
	combined := Digest(sigHash + descHash)
	c.symbols[id] = SymbolEntry{
		SymbolID:        id,
		SignatureHash:   sigHash,
		DescriptionHash: descHash,
		CombinedHash:    combined,
		CachedAt:        time.Now(),
	}
	c.maybeEvictLocked()
	c.scheduleFlushLocked()
	return combined
}

// HasFileChanged reports whether the current content differs from the
// cached hash. An uncached file counts as changed.
func (c *Cache) HasFileChanged(path, currentContent string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.files[path]
	if !ok {
		c.misses++
		return true
	}
	if entry.ContentHash == Digest(currentContent) {
		c.hits++
		return false
	}
	c.misses++
	return true
}

// HasSymbolChanged reports whether a symbol's signature or description
// differs from the cached hashes. An uncached symbol counts as changed.
func (c *Cache) HasSymbolChanged(sym corpus.Symbol, filePath string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.symbols[SymbolID(filePath, sym.Name, sym.Kind)]
	if !ok {
		c.misses++
		return true
	}
	if entry.SignatureHash == Digest(sym.Signature) && entry.DescriptionHash == Digest(sym.Description) {
		c.hits++
		return false
	}
	c.misses++
	return true
}

// GetChangedSymbols reconciles a file's current symbols against the cached
// identities scoped to that file: present-and-changed is modified,
// present-and-uncached is added, cached-but-absent is deleted. The cache is
// refreshed with the current hashes as a side effect.
func (c *Cache) GetChangedSymbols(file corpus.FileRecord) SymbolChanges {
	c.mu.Lock()
	defer c.mu.Unlock()

	var changes SymbolChanges
	current := make(map[string]bool, len(file.Symbols))

	for _, sym := range file.Symbols {
		id := SymbolID(file.Path, sym.Name, sym.Kind)
		current[id] = true

		sigHash := Digest(sym.Signature)
		descHash := Digest(sym.Description)
		entry, ok := c.symbols[id]
		switch {
		case !ok:
			changes.Added = append(changes.Added, sym)
		case entry.SignatureHash != sigHash || entry.DescriptionHash != descHash:
			changes.Modified = append(changes.Modified, sym)
		default:
			continue
		}
		c.symbols[id] = SymbolEntry{
			SymbolID:        id,
			SignatureHash:   sigHash,
			DescriptionHash: descHash,
			CombinedHash:    Digest(sigHash + descHash),
			CachedAt:        time.Now(),
		}
	}

	prefix := file.Path + ":"
	for id := range c.symbols {
		if len(id) > len(prefix) && id[:len(prefix)] == prefix && !current[id] {
			changes.Deleted = append(changes.Deleted, id)
			delete(c.symbols, id)
		}
	}

	if len(changes.Added)+len(changes.Modified)+len(changes.Deleted) > 0 {
		c.scheduleFlushLocked()
	}
	return changes
}

// InvalidateFile drops the file entry and every symbol entry for the path.
func (c *Cache) InvalidateFile(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.files, path)
	prefix := path + ":"
	for id := range c.symbols {
		if len(id) > len(prefix) && id[:len(prefix)] == prefix {
			delete(c.symbols, id)
		}
	}
	c.scheduleFlushLocked()
}

// InvalidateAll drops every entry but keeps cumulative stats.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.files = make(map[string]FileEntry)
	c.symbols = make(map[string]SymbolEntry)
	c.scheduleFlushLocked()
}

// GetStats returns cumulative hit/miss counters.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		TotalRequests: c.hits + c.misses,
	}
	if s.TotalRequests > 0 {
		s.HitRate = float64(s.Hits) / float64(s.TotalRequests)
	}
	return s
}

// EntryCount returns the number of file and symbol entries currently held.
func (c *Cache) EntryCount() (files, symbols int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files), len(c.symbols)
}

// Close flushes any pending persistence write.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.flushTimer != nil {
		c.flushTimer.Stop()
		c.flushTimer = nil
	}
	doc := c.snapshotLocked()
	path := c.opts.Path
	c.mu.Unlock()

	if path == "" {
		return nil
	}
	return writeDocument(path, doc)
}

func (c *Cache) computeSymbolHashLocked(file corpus.FileRecord) string {
	combined := ""
	for _, sym := range file.Symbols {
		combined += Digest(Digest(sym.Signature) + Digest(sym.Description))
	}
	return Digest(combined)
}

// maybeEvictLocked runs the two-part eviction policy: a time-based sweep is
// triggered only under count pressure, and at most once per hour.
func (c *Cache) maybeEvictLocked() {
	if c.opts.MaxEntries <= 0 || c.opts.MaxAge <= 0 {
		return
	}
	if len(c.files)+len(c.symbols) <= c.opts.MaxEntries {
		return
	}
	if time.Since(c.lastCleanup) < time.Hour {
		return
	}

	cutoff := time.Now().Add(-c.opts.MaxAge)
	for path, entry := range c.files {
		if entry.CachedAt.Before(cutoff) {
			delete(c.files, path)
		}
	}
	for id, entry := range c.symbols {
		if entry.CachedAt.Before(cutoff) {
			delete(c.symbols, id)
		}
	}
	c.lastCleanup = time.Now()
}
