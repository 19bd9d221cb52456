package corpus

import "time"

// Symbol represents a single named declaration extracted from a source file,
// such as a function, type, or constant.
type Symbol struct {
	Name        string         `json:"name"`                  // Name of the symbol (e.g., function name)
	Kind        string         `json:"kind"`                  // e.g., "function", "method", "struct", "interface", "const", "var"
	Signature   string         `json:"signature,omitempty"`   // Declaration signature, if any
	Description string         `json:"description,omitempty"` // Associated doc comment
	Location    SymbolLocation `json:"location"`              // Position in the source file
}

// SymbolLocation holds line positions within the owning file.
type SymbolLocation struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// FileRecord is one parsed source file in a corpus generation.
// Identity is the path; symbol identity within a file is (name, kind).
type FileRecord struct {
	Path    string   `json:"path"`
	Symbols []Symbol `json:"symbols"`
	Content string   `json:"content,omitempty"` // Raw file content, when available
}

// ChangeType classifies a file-level delta.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
)

// SymbolDelta partitions the changed symbols of a single file.
// The three partitions are disjoint and cover every changed identity.
type SymbolDelta struct {
	Added    []Symbol `json:"added"`
	Modified []Symbol `json:"modified"`
	Deleted  []Symbol `json:"deleted"`
}

// Empty reports whether the delta carries no symbol changes.
func (d *SymbolDelta) Empty() bool {
	return d == nil || len(d.Added)+len(d.Modified)+len(d.Deleted) == 0
}

// FileChange is one entry of a ChangeSet.
type FileChange struct {
	Path        string       `json:"path"`
	ChangeType  ChangeType   `json:"change_type"`
	NewContent  string       `json:"new_content,omitempty"`
	SymbolDelta *SymbolDelta `json:"symbol_delta,omitempty"`
}

// ChangeSummary aggregates a ChangeSet. The counts always equal the
// partition sizes of the Files slice they summarize.
type ChangeSummary struct {
	TotalFiles      int `json:"total_files"`
	AddedFiles      int `json:"added_files"`
	ModifiedFiles   int `json:"modified_files"`
	DeletedFiles    int `json:"deleted_files"`
	RenamedFiles    int `json:"renamed_files"`
	TotalSymbols    int `json:"total_symbols"`
	AddedSymbols    int `json:"added_symbols"`
	ModifiedSymbols int `json:"modified_symbols"`
	DeletedSymbols  int `json:"deleted_symbols"`
}

// ChangeSet is the structured diff between two corpus generations.
type ChangeSet struct {
	Files      []FileChange  `json:"files"`
	Timestamp  time.Time     `json:"timestamp"`
	BaseCommit string        `json:"base_commit"`
	HeadCommit string        `json:"head_commit"`
	Summary    ChangeSummary `json:"summary"`
}

// Summarize recomputes the summary from the Files partition.
func (cs *ChangeSet) Summarize() {
	var s ChangeSummary
	s.TotalFiles = len(cs.Files)
	for _, fc := range cs.Files {
		switch fc.ChangeType {
		case ChangeAdded:
			s.AddedFiles++
		case ChangeModified:
			s.ModifiedFiles++
		case ChangeDeleted:
			s.DeletedFiles++
		case ChangeRenamed:
			s.RenamedFiles++
		}
		if fc.SymbolDelta != nil {
			s.AddedSymbols += len(fc.SymbolDelta.Added)
			s.ModifiedSymbols += len(fc.SymbolDelta.Modified)
			s.DeletedSymbols += len(fc.SymbolDelta.Deleted)
		}
	}
	s.TotalSymbols = s.AddedSymbols + s.ModifiedSymbols + s.DeletedSymbols
	cs.Summary = s
}
