package detector

import (
	"time"

	"docsync/internal/corpus"
	"docsync/internal/hashcache"
)

// Detector diffs two generations of a parsed corpus into a ChangeSet.
type Detector struct {
	cache *hashcache.Cache
}

// New creates a detector. The cache is optional; when present it is warmed
// with the hashes of the new generation so later runs short-circuit.
func New(cache *hashcache.Cache) *Detector {
	return &Detector{cache: cache}
}

// Detect compares two corpus generations matched by path. Files with equal
// content hashes produce no entry at all, so Detect(x, x) yields an empty
// change list.
func (d *Detector) Detect(oldFiles, newFiles []corpus.FileRecord, baseCommit, headCommit string) corpus.ChangeSet {
	cs := corpus.ChangeSet{
		Timestamp:  time.Now(),
		BaseCommit: baseCommit,
		HeadCommit: headCommit,
	}

	oldByPath := indexByPath(oldFiles)
	newByPath := indexByPath(newFiles)

	for i := range newFiles {
		newFile := &newFiles[i]
		oldFile := oldByPath[newFile.Path]

		var newHash string
		if d.cache != nil {
			// The cached entry still holds the previous generation's hash
			// until GetOrComputeFileHash refreshes it below, so an
			// unchanged verdict here skips the full diff.
			unchanged := oldFile != nil && !d.cache.HasFileChanged(newFile.Path, newFile.Content)
			newHash = d.cache.GetOrComputeFileHash(*newFile).ContentHash
			if unchanged {
				continue
			}
		} else {
			newHash = hashcache.Digest(newFile.Content)
		}

		if change := d.detectWithHash(oldFile, newFile, newHash); change != nil {
			cs.Files = append(cs.Files, *change)
		}
	}

	for i := range oldFiles {
		oldFile := &oldFiles[i]
		if _, ok := newByPath[oldFile.Path]; ok {
			continue
		}
		if change := d.DetectFileChange(oldFile, nil); change != nil {
			cs.Files = append(cs.Files, *change)
		}
	}

	cs.Summarize()
	return cs
}

// DetectFileChange classifies a single file pair. A nil old file yields
// "added", a nil new file yields "deleted", and hash-equal content yields
// nil rather than a zero-delta record.
func (d *Detector) DetectFileChange(oldFile, newFile *corpus.FileRecord) *corpus.FileChange {
	var newHash string
	if newFile != nil {
		newHash = hashcache.Digest(newFile.Content)
	}
	return d.detectWithHash(oldFile, newFile, newHash)
}

func (d *Detector) detectWithHash(oldFile, newFile *corpus.FileRecord, newHash string) *corpus.FileChange {
	switch {
	case oldFile == nil && newFile == nil:
		return nil
	case oldFile == nil:
		delta := d.CompareSymbols(nil, newFile.Symbols)
		return &corpus.FileChange{
			Path:        newFile.Path,
			ChangeType:  corpus.ChangeAdded,
			NewContent:  newFile.Content,
			SymbolDelta: deltaOrNil(delta),
		}
	case newFile == nil:
		delta := d.CompareSymbols(oldFile.Symbols, nil)
		return &corpus.FileChange{
			Path:        oldFile.Path,
			ChangeType:  corpus.ChangeDeleted,
			SymbolDelta: deltaOrNil(delta),
		}
	}

	if hashcache.Digest(oldFile.Content) == newHash {
		return nil
	}

	delta := d.CompareSymbols(oldFile.Symbols, newFile.Symbols)
	return &corpus.FileChange{
		Path:        newFile.Path,
		ChangeType:  corpus.ChangeModified,
		NewContent:  newFile.Content,
		SymbolDelta: deltaOrNil(delta),
	}
}

// CompareSymbols partitions symbols by identity (name, kind): new-only is
// added, old-only is deleted, and shared identities with a different
// signature or description hash are modified. The partitions are disjoint
// and cover every changed identity.
func (d *Detector) CompareSymbols(oldSymbols, newSymbols []corpus.Symbol) corpus.SymbolDelta {
	var delta corpus.SymbolDelta

	oldByID := make(map[string]corpus.Symbol, len(oldSymbols))
	for _, sym := range oldSymbols {
		oldByID[sym.Name+":"+sym.Kind] = sym
	}

	seen := make(map[string]bool, len(newSymbols))
	for _, sym := range newSymbols {
		id := sym.Name + ":" + sym.Kind
		seen[id] = true
		oldSym, ok := oldByID[id]
		if !ok {
			delta.Added = append(delta.Added, sym)
			continue
		}
		if hashcache.Digest(oldSym.Signature) != hashcache.Digest(sym.Signature) ||
			hashcache.Digest(oldSym.Description) != hashcache.Digest(sym.Description) {
			delta.Modified = append(delta.Modified, sym)
		}
	}

	for _, sym := range oldSymbols {
		if !seen[sym.Name+":"+sym.Kind] {
			delta.Deleted = append(delta.Deleted, sym)
		}
	}

	return delta
}

func indexByPath(files []corpus.FileRecord) map[string]*corpus.FileRecord {
	byPath := make(map[string]*corpus.FileRecord, len(files))
	for i := range files {
		byPath[files[i].Path] = &files[i]
	}
	return byPath
}

func deltaOrNil(delta corpus.SymbolDelta) *corpus.SymbolDelta {
	if delta.Empty() {
		return nil
	}
	return &delta
}
