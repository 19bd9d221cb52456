package merge

import (
	"strings"
	"testing"

	"docsync/internal/corpus"

	"github.com/stretchr/testify/assert"
)

func TestMergeContent_AddedPreservesOld(t *testing.T) {
	merged := MergeContent("# Old\n\nOld content.", "## New\n\nNew content.", corpus.ChangeAdded)

	assert.Contains(t, merged, "Old content")
	assert.Contains(t, merged, "New content")
}

func TestMergeContent_AddedDegenerateInputs(t *testing.T) {
	assert.Equal(t, "## New\n", MergeContent("", "## New\n", corpus.ChangeAdded))
	assert.Equal(t, "# Old\n", MergeContent("# Old\n", "", corpus.ChangeAdded))

	// Already-integrated content is not duplicated.
	merged := MergeContent("# Page\n\n## New\n\nNew content.", "## New\n\nNew content.", corpus.ChangeAdded)
	assert.Equal(t, 1, strings.Count(merged, "New content."))
}

func TestMergeContent_ModifiedReplacesMatchingSection(t *testing.T) {
	old := "# Page\n\n## Usage\n\nOld usage.\n\n## Install\n\nRun make.\n"
	updated := "## Usage\n\nNew usage.\n"

	merged := MergeContent(old, updated, corpus.ChangeModified)

	assert.Contains(t, merged, "New usage.")
	assert.NotContains(t, merged, "Old usage.")
	assert.Contains(t, merged, "Run make.", "untouched sections survive")
}

func TestMergeContent_ModifiedAppendsUnknownSection(t *testing.T) {
	old := "# Page\n\n## Usage\n\nUsage text.\n"
	updated := "## Examples\n\nExample text.\n"

	merged := MergeContent(old, updated, corpus.ChangeModified)

	assert.Contains(t, merged, "Usage text.")
	assert.Contains(t, merged, "Example text.")
}

func TestMergeContent_ModifiedNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, MergeContent("# Old\n", "", corpus.ChangeModified))
	assert.NotEmpty(t, MergeContent("", "# New\n", corpus.ChangeModified))
	assert.Equal(t, "", MergeContent("", "", corpus.ChangeModified), "both sides empty stays defined")
}

func TestMergeContent_DeletedKeepsPage(t *testing.T) {
	old := "# Page\n\nStill here.\n"
	assert.Equal(t, old, MergeContent(old, "", corpus.ChangeDeleted))
}
