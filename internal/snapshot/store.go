package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"docsync/internal/corpus"

	"github.com/google/uuid"
)

// Snapshot is an immutable capture of a parsed corpus tied to a commit.
// A snapshot is never mutated after creation; the next cycle supersedes it.
type Snapshot struct {
	ID         string              `json:"id"`
	CommitHash string              `json:"commit_hash"`
	Files      []corpus.FileRecord `json:"files"`
	Metadata   Metadata            `json:"metadata"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Metadata summarizes snapshot contents.
type Metadata struct {
	TotalFiles   int `json:"total_files"`
	TotalSymbols int `json:"total_symbols"`
}

// Store persists snapshots as one JSON file per snapshot under a directory.
// It is the only writer of that directory; the design assumes a single
// writer process per project.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created lazily
// on the first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Create builds a snapshot from a corpus generation. Pure: no I/O happens
// until Save.
func Create(files []corpus.FileRecord, commitHash string) *Snapshot {
	totalSymbols := 0
	for _, f := range files {
		totalSymbols += len(f.Symbols)
	}
	return &Snapshot{
		ID:         uuid.NewString(),
		CommitHash: commitHash,
		Files:      files,
		Metadata:   Metadata{TotalFiles: len(files), TotalSymbols: totalSymbols},
		CreatedAt:  time.Now(),
	}
}

// Save persists the snapshot, writing a temp file and renaming it over the
// target so a crash can never leave a truncated snapshot behind.
func (s *Store) Save(snap *Snapshot) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	target := filepath.Join(s.dir, snap.ID+".json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot with the given ID, or nil if it is missing or
// unparseable. Corruption is never a fatal condition here.
func (s *Store) Load(id string) *Snapshot {
	return decodeFile(filepath.Join(s.dir, id+".json"))
}

// Latest scans the directory and returns the snapshot with the newest
// persisted creation time, or nil when none decode. Callers needing strict
// ordering must save in monotonically increasing order themselves.
func (s *Store) Latest() *Snapshot {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}

	var latest *Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		snap := decodeFile(filepath.Join(s.dir, entry.Name()))
		if snap == nil {
			continue
		}
		if latest == nil || snap.CreatedAt.After(latest.CreatedAt) {
			latest = snap
		}
	}
	return latest
}

// List returns the IDs and creation times of every decodable snapshot,
// newest first.
func (s *Store) List() []Snapshot {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}

	var snaps []Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if snap := decodeFile(filepath.Join(s.dir, entry.Name())); snap != nil {
			snaps = append(snaps, Snapshot{
				ID:         snap.ID,
				CommitHash: snap.CommitHash,
				Metadata:   snap.Metadata,
				CreatedAt:  snap.CreatedAt,
			})
		}
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
	return snaps
}

func decodeFile(path string) *Snapshot {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil
	}
	return &snap
}
