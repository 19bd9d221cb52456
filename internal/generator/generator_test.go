package generator

import (
	"context"
	"testing"

	"docsync/internal/corpus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackGenerator_SummarizesDeltas(t *testing.T) {
	changes := []corpus.FileChange{
		{Path: "api.go", ChangeType: corpus.ChangeModified, SymbolDelta: &corpus.SymbolDelta{
			Added:    []corpus.Symbol{{Name: "New", Kind: "function"}},
			Modified: []corpus.Symbol{{Name: "Old", Kind: "function"}},
		}},
		{Path: "gone.go", ChangeType: corpus.ChangeDeleted},
	}

	content, err := FallbackGenerator{}.GeneratePage(context.Background(), "api", changes)
	require.NoError(t, err)

	assert.Contains(t, content, "## api")
	assert.Contains(t, content, "`api.go` (modified)")
	assert.Contains(t, content, "1 added, 1 modified, 0 deleted")
	assert.Contains(t, content, "`gone.go` (deleted)")
}

func TestFallbackGenerator_NoChanges(t *testing.T) {
	content, err := FallbackGenerator{}.GeneratePage(context.Background(), "api", nil)
	require.NoError(t, err)
	assert.Contains(t, content, "No tracked source changes")
}

func TestCleanMarkdownOutput_StripsFence(t *testing.T) {
	assert.Equal(t, "# Title\n\nBody.", cleanMarkdownOutput("```markdown\n# Title\n\nBody.\n```"))
	assert.Equal(t, "# Plain", cleanMarkdownOutput("# Plain"))
}
