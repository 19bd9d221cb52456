package generator

import (
	"context"
	"fmt"
	"strings"

	"docsync/internal/corpus"

	"google.golang.org/genai"
)

// GeminiGenerator implements PageGenerator using Gemini text generation.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey string, modelName string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: modelName}, nil
}

func (g *GeminiGenerator) GeneratePage(ctx context.Context, pageID string, changes []corpus.FileChange) (string, error) {
	prompt := buildPagePrompt(pageID, changes)
	contents := genai.Text(prompt)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		// Empty responses fall back to delta-derived content instead of
		// blanking the page.
		return FallbackGenerator{}.GeneratePage(ctx, pageID, changes)
	}
	return cleanMarkdownOutput(text), nil
}

func buildPagePrompt(pageID string, changes []corpus.FileChange) string {
	var sb strings.Builder
	sb.WriteString("You are a technical writer maintaining project documentation.\n")
	sb.WriteString("Regenerate the documentation page '" + pageID + "' to reflect these source changes.\n")
	sb.WriteString("Respond with markdown only, no preamble.\n\nChanges:\n")
	for _, fc := range changes {
		sb.WriteString(fmt.Sprintf("\nFile %s (%s)\n", fc.Path, fc.ChangeType))
		if fc.SymbolDelta != nil {
			for _, sym := range fc.SymbolDelta.Added {
				sb.WriteString("  + " + sym.Kind + " " + sym.Name + " " + sym.Signature + "\n")
			}
			for _, sym := range fc.SymbolDelta.Modified {
				sb.WriteString("  ~ " + sym.Kind + " " + sym.Name + " " + sym.Signature + "\n")
			}
			for _, sym := range fc.SymbolDelta.Deleted {
				sb.WriteString("  - " + sym.Kind + " " + sym.Name + "\n")
			}
		}
	}
	return sb.String()
}

// cleanMarkdownOutput strips a wrapping code fence when the model returns
// one around the whole document.
func cleanMarkdownOutput(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		if idx := strings.Index(trimmed, "\n"); idx > 0 {
			trimmed = trimmed[idx+1:]
		}
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	return trimmed
}
