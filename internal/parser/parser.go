package parser

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"docsync/internal/corpus"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// Parser turns Go source files into corpus FileRecords using tree-sitter.
type Parser struct {
	lang    *sitter.Language
	query   string
	ignored []string
}

// NewGoParser creates a parser for Go sources.
func NewGoParser() *Parser {
	return &Parser{
		lang: golang.GetLanguage(),
		query: `
			(function_declaration) @function
			(method_declaration) @method
			(type_spec) @type
			(const_spec) @const
			(var_spec) @var
		`,
		ignored: []string{".git", "vendor", "node_modules", "testdata"},
	}
}

// ScanProject walks the root directory and parses every Go source file,
// skipping tests and ignored directories. Unparseable files are skipped
// rather than failing the whole scan. Paths in the returned records are
// relative to root.
func (p *Parser) ScanProject(root string) ([]corpus.FileRecord, error) {
	var records []corpus.FileRecord

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			for _, ign := range p.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".go") || strings.HasSuffix(d.Name(), "_test.go") {
			return nil
		}

		record, err := p.ParseFile(path)
		if err != nil {
			return nil
		}
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			record.Path = filepath.ToSlash(rel)
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return records, nil
}

// ParseFile parses a single source file into a FileRecord.
func (p *Parser) ParseFile(path string) (corpus.FileRecord, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return corpus.FileRecord{}, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	symbols, err := p.extract(source)
	if err != nil {
		return corpus.FileRecord{}, fmt.Errorf("failed to parse file %s: %w", path, err)
	}
	return corpus.FileRecord{
		Path:    filepath.ToSlash(path),
		Symbols: symbols,
		Content: string(source),
	}, nil
}

// Parse extracts symbols from in-memory source, for callers that already
// hold file contents.
func (p *Parser) Parse(path string, source []byte) (corpus.FileRecord, error) {
	symbols, err := p.extract(source)
	if err != nil {
		return corpus.FileRecord{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return corpus.FileRecord{Path: filepath.ToSlash(path), Symbols: symbols, Content: string(source)}, nil
}

func (p *Parser) extract(source []byte) ([]corpus.Symbol, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(p.lang)
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, err
	}

	query, err := sitter.NewQuery([]byte(p.query), p.lang)
	if err != nil {
		return nil, err
	}

	qc := sitter.NewQueryCursor()
	qc.Exec(query, tree.RootNode())

	var symbols []corpus.Symbol
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			kind := query.CaptureNameForId(c.Index)
			if sym := p.buildSymbol(kind, c.Node, source); sym != nil {
				symbols = append(symbols, *sym)
			}
		}
	}
	return symbols, nil
}

func (p *Parser) buildSymbol(kind string, node *sitter.Node, source []byte) *corpus.Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	// type_spec/const_spec/var_spec carry the doc comment and full text on
	// their enclosing declaration node.
	anchor := node
	if parent := node.Parent(); parent != nil {
		switch parent.Type() {
		case "type_declaration", "const_declaration", "var_declaration":
			anchor = parent
		}
	}

	if kind == "type" {
		kind = typeKind(node)
	}

	return &corpus.Symbol{
		Name:        nameNode.Content(source),
		Kind:        kind,
		Signature:   signatureOf(anchor, source),
		Description: docCommentOf(anchor, source),
		Location: corpus.SymbolLocation{
			StartLine: int(anchor.StartPoint().Row + 1),
			EndLine:   int(anchor.EndPoint().Row + 1),
		},
	}
}

func typeKind(node *sitter.Node) string {
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		switch typeNode.Type() {
		case "struct_type":
			return "struct"
		case "interface_type":
			return "interface"
		}
	}
	return "type"
}

// signatureOf returns the declaration up to its body: the first line, cut
// at an opening brace when present.
func signatureOf(node *sitter.Node, source []byte) string {
	content := node.Content(source)
	if idx := strings.Index(content, "{"); idx > 0 {
		content = content[:idx]
	}
	if idx := strings.Index(content, "\n"); idx > 0 {
		content = content[:idx]
	}
	return strings.TrimSpace(content)
}

// docCommentOf collects the contiguous comment block immediately above a
// declaration.
func docCommentOf(node *sitter.Node, source []byte) string {
	var lines []string
	current := node
	for {
		prev := current.PrevSibling()
		if prev == nil || prev.Type() != "comment" {
			break
		}
		if current.StartPoint().Row-prev.EndPoint().Row > 1 {
			break
		}
		lines = append([]string{cleanComment(prev.Content(source))}, lines...)
		current = prev
	}
	return strings.Join(lines, "\n")
}

func cleanComment(comment string) string {
	comment = strings.TrimPrefix(comment, "//")
	comment = strings.TrimPrefix(comment, "/*")
	comment = strings.TrimSuffix(comment, "*/")
	return strings.TrimSpace(comment)
}
