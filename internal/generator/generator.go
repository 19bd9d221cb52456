package generator

import (
	"context"
	"fmt"
	"strings"

	"docsync/internal/corpus"
)

// PageGenerator produces the markdown content for one documentation page.
// This is the only integration point between the sync engine and content
// generation; the engine treats it as opaque.
type PageGenerator interface {
	GeneratePage(ctx context.Context, pageID string, changes []corpus.FileChange) (string, error)
}

// FallbackGenerator produces deterministic low-cost content from the change
// deltas alone. It backs updateFn when no AI provider is configured and
// serves as the degradation path when generation fails.
type FallbackGenerator struct{}

func (FallbackGenerator) GeneratePage(ctx context.Context, pageID string, changes []corpus.FileChange) (string, error) {
	var sb strings.Builder
	sb.WriteString("## " + pageID + "\n\n")
	sb.WriteString("### What Changed\n")
	for _, fc := range changes {
		sb.WriteString(fmt.Sprintf("- `%s` (%s)", fc.Path, fc.ChangeType))
		if fc.SymbolDelta != nil {
			sb.WriteString(fmt.Sprintf(": %d added, %d modified, %d deleted symbols",
				len(fc.SymbolDelta.Added), len(fc.SymbolDelta.Modified), len(fc.SymbolDelta.Deleted)))
		}
		sb.WriteString("\n")
	}
	if len(changes) == 0 {
		sb.WriteString("- No tracked source changes.\n")
	}
	return sb.String(), nil
}
