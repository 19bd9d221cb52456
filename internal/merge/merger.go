package merge

import (
	"strings"

	"docsync/internal/corpus"
)

// MergeContent applies a file-level change to previously generated page
// content without invoking regeneration. This is a one-way heuristic text
// merge over markdown sections, not a structural diff; it is not required
// to be lossless or conflict-free, but it never returns an error and never
// drops old content silently.
func MergeContent(oldContent, newContent string, changeType corpus.ChangeType) string {
	switch changeType {
	case corpus.ChangeAdded:
		return mergeAdded(oldContent, newContent)
	case corpus.ChangeModified, corpus.ChangeRenamed:
		return mergeModified(oldContent, newContent)
	case corpus.ChangeDeleted:
		// Page deletion is a caller decision; the content survives as-is.
		return oldContent
	default:
		return mergeModified(oldContent, newContent)
	}
}

func mergeAdded(oldContent, newContent string) string {
	oldTrimmed := strings.TrimSpace(oldContent)
	newTrimmed := strings.TrimSpace(newContent)

	if oldTrimmed == "" {
		return newContent
	}
	if newTrimmed == "" || strings.Contains(oldContent, newTrimmed) {
		return oldContent
	}
	return oldTrimmed + "\n\n" + newTrimmed + "\n"
}

// mergeModified replaces same-titled sections of the old content with their
// new versions and appends sections the old content never had. Degenerate
// input still yields a non-empty result whenever either side has content.
func mergeModified(oldContent, newContent string) string {
	oldTrimmed := strings.TrimSpace(oldContent)
	newTrimmed := strings.TrimSpace(newContent)

	if newTrimmed == "" {
		return oldContent
	}
	if oldTrimmed == "" {
		return newContent
	}

	oldSections := splitSections(oldContent)
	newSections := splitSections(newContent)
	if len(oldSections) <= 1 || len(newSections) == 0 {
		// Unstructured content: the new generation supersedes the old.
		return newContent
	}

	replacements := make(map[string]section, len(newSections))
	for _, sec := range newSections {
		if sec.title != "" {
			replacements[sec.title] = sec
		}
	}

	var sb strings.Builder
	used := make(map[string]bool)
	for _, sec := range oldSections {
		if repl, ok := replacements[sec.title]; ok && sec.title != "" {
			sb.WriteString(strings.TrimRight(repl.text, "\n"))
			used[sec.title] = true
		} else {
			sb.WriteString(strings.TrimRight(sec.text, "\n"))
		}
		sb.WriteString("\n\n")
	}
	for _, sec := range newSections {
		if sec.title == "" || used[sec.title] {
			continue
		}
		sb.WriteString(strings.TrimRight(sec.text, "\n"))
		sb.WriteString("\n\n")
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

type section struct {
	title string // heading text without the leading hashes; "" for a preamble
	text  string // full section text including the heading line
}

// splitSections cuts markdown at heading lines. Content before the first
// heading becomes an untitled preamble section.
func splitSections(content string) []section {
	lines := strings.Split(content, "\n")

	var sections []section
	var current []string
	currentTitle := ""

	flush := func() {
		text := strings.Join(current, "\n")
		if strings.TrimSpace(text) != "" {
			sections = append(sections, section{title: currentTitle, text: text})
		}
	}

	for _, line := range lines {
		if title, ok := headingTitle(line); ok {
			flush()
			currentTitle = title
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	flush()

	return sections
}

func headingTitle(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	rest := strings.TrimLeft(trimmed, "#")
	if rest == trimmed || !strings.HasPrefix(rest, " ") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
