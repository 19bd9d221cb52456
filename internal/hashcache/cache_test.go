package hashcache

import (
	"os"
	"path/filepath"
	"testing"

	"docsync/internal/corpus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFile(path, content string, symbols ...corpus.Symbol) corpus.FileRecord {
	return corpus.FileRecord{Path: path, Content: content, Symbols: symbols}
}

func TestGetOrComputeFileHash_MissThenHit(t *testing.T) {
	c := New(Options{})
	file := testFile("a.go", "package a\n")

	first := c.GetOrComputeFileHash(file)
	second := c.GetOrComputeFileHash(file)

	assert.Equal(t, first, second)
	assert.Len(t, first.ContentHash, 16)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.InDelta(t, 0.5, stats.HitRate, 0.0001)
}

func TestHasFileChanged_AfterMutation(t *testing.T) {
	c := New(Options{})
	c.GetOrComputeFileHash(testFile("a.go", "package a\n"))

	assert.False(t, c.HasFileChanged("a.go", "package a\n"))
	assert.True(t, c.HasFileChanged("a.go", "package a\n\nfunc A() {}\n"))
	assert.True(t, c.HasFileChanged("unseen.go", "anything"))
}

func TestGetOrComputeSymbolHash_DescriptionOnlyChange(t *testing.T) {
	c := New(Options{})
	sym := corpus.Symbol{Name: "Run", Kind: "function", Signature: "func Run() error", Description: "Run starts the engine."}

	h1 := c.GetOrComputeSymbolHash(sym, "a.go")
	sym.Description = "Run starts the engine once."
	h2 := c.GetOrComputeSymbolHash(sym, "a.go")

	assert.NotEqual(t, h1, h2, "changed description must change the combined hash")
	assert.False(t, c.HasSymbolChanged(sym, "a.go"))
}

func TestGetChangedSymbols_Partitions(t *testing.T) {
	c := New(Options{})
	keep := corpus.Symbol{Name: "Keep", Kind: "function", Signature: "func Keep()"}
	mod := corpus.Symbol{Name: "Mod", Kind: "function", Signature: "func Mod()"}
	gone := corpus.Symbol{Name: "Gone", Kind: "function", Signature: "func Gone()"}

	c.GetChangedSymbols(testFile("a.go", "v1", keep, mod, gone))

	mod.Signature = "func Mod(n int)"
	added := corpus.Symbol{Name: "New", Kind: "function", Signature: "func New()"}
	changes := c.GetChangedSymbols(testFile("a.go", "v2", keep, mod, added))

	require.Len(t, changes.Added, 1)
	assert.Equal(t, "New", changes.Added[0].Name)
	require.Len(t, changes.Modified, 1)
	assert.Equal(t, "Mod", changes.Modified[0].Name)
	require.Len(t, changes.Deleted, 1)
	assert.Equal(t, SymbolID("a.go", "Gone", "function"), changes.Deleted[0])
}

func TestInvalidateFile_ScopedToPath(t *testing.T) {
	c := New(Options{})
	c.GetOrComputeFileHash(testFile("a.go", "a"))
	c.GetOrComputeFileHash(testFile("b.go", "b"))
	c.GetOrComputeSymbolHash(corpus.Symbol{Name: "A", Kind: "function"}, "a.go")
	c.GetOrComputeSymbolHash(corpus.Symbol{Name: "B", Kind: "function"}, "b.go")

	c.InvalidateFile("a.go")

	files, symbols := c.EntryCount()
	assert.Equal(t, 1, files)
	assert.Equal(t, 1, symbols)
	assert.True(t, c.HasFileChanged("a.go", "a"))
	assert.False(t, c.HasFileChanged("b.go", "b"))
}

func TestPersistence_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hashes.json")

	c := New(Options{Path: path, FlushDelay: 0})
	c.GetOrComputeFileHash(testFile("a.go", "package a\n"))
	c.GetOrComputeSymbolHash(corpus.Symbol{Name: "A", Kind: "function", Signature: "func A()"}, "a.go")
	require.NoError(t, c.Close())

	reloaded := New(Options{Path: path, FlushDelay: 0})
	assert.False(t, reloaded.HasFileChanged("a.go", "package a\n"))
	assert.False(t, reloaded.HasSymbolChanged(corpus.Symbol{Name: "A", Kind: "function", Signature: "func A()"}, "a.go"))
}

func TestPersistence_CorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hashes.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	c := New(Options{Path: path, FlushDelay: 0})
	files, symbols := c.EntryCount()
	assert.Zero(t, files)
	assert.Zero(t, symbols)
	assert.True(t, c.HasFileChanged("a.go", "anything"))
}

func TestClose_ReportsWriteFailure(t *testing.T) {
	// A regular file where the cache directory should be makes the final
	// flush fail; Close must surface that instead of dropping it.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	c := New(Options{Path: filepath.Join(blocker, "hashes.json")})
	c.GetOrComputeFileHash(testFile("a.go", "package a\n"))
	assert.Error(t, c.Close())
}

func TestDigest_Shape(t *testing.T) {
	assert.Len(t, Digest("hello"), 16)
	assert.Equal(t, Digest("hello"), Digest("hello"))
	assert.NotEqual(t, Digest("hello"), Digest("hello!"))
}
