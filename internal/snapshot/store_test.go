package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"docsync/internal/corpus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_Metadata(t *testing.T) {
	files := []corpus.FileRecord{
		{Path: "a.go", Symbols: []corpus.Symbol{{Name: "A", Kind: "function"}, {Name: "B", Kind: "struct"}}},
		{Path: "b.go", Symbols: []corpus.Symbol{{Name: "C", Kind: "function"}}},
	}

	snap := Create(files, "abc123")

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "abc123", snap.CommitHash)
	assert.Equal(t, 2, snap.Metadata.TotalFiles)
	assert.Equal(t, 3, snap.Metadata.TotalSymbols)
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	files := []corpus.FileRecord{{Path: "a.go", Content: "package a\n"}, {Path: "b.go"}}

	snap := Create(files, "abc123")
	require.NoError(t, store.Save(snap))

	loaded := store.Load(snap.ID)
	require.NotNil(t, loaded)
	assert.Equal(t, "abc123", loaded.CommitHash)
	assert.Len(t, loaded.Files, len(files))
}

func TestLoad_MissingOrCorruptReturnsNil(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	assert.Nil(t, store.Load("does-not-exist"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{truncated"), 0644))
	assert.Nil(t, store.Load("bad"))
	assert.Nil(t, store.Latest())
}

func TestLatest_PicksNewestCreatedAt(t *testing.T) {
	store := NewStore(t.TempDir())

	older := Create(nil, "old")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := Create(nil, "new")

	require.NoError(t, store.Save(newer))
	require.NoError(t, store.Save(older))

	latest := store.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, "new", latest.CommitHash)
}

func TestList_NewestFirstSkippingCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	first := Create(nil, "c1")
	first.CreatedAt = time.Now().Add(-time.Minute)
	second := Create(nil, "c2")
	require.NoError(t, store.Save(first))
	require.NoError(t, store.Save(second))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.json"), []byte("junk"), 0644))

	snaps := store.List()
	require.Len(t, snaps, 2)
	assert.Equal(t, "c2", snaps[0].CommitHash)
	assert.Equal(t, "c1", snaps[1].CommitHash)
}
