package parser

import (
	"os"
	"path/filepath"
	"testing"

	"docsync/internal/corpus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `package sample

// Greeter says hello.
type Greeter struct {
	Name string
}

// Greet returns a greeting.
func (g *Greeter) Greet() string {
	return "hello " + g.Name
}

// MaxRetries bounds retry loops.
const MaxRetries = 3

func helper() {}
`

func TestParse_ExtractsSymbols(t *testing.T) {
	p := NewGoParser()

	record, err := p.Parse("sample.go", []byte(sampleSource))
	require.NoError(t, err)

	byName := map[string]corpus.Symbol{}
	for _, sym := range record.Symbols {
		byName[sym.Name] = sym
	}

	greeter, ok := byName["Greeter"]
	require.True(t, ok)
	assert.Equal(t, "struct", greeter.Kind)
	assert.Equal(t, "Greeter says hello.", greeter.Description)

	greet, ok := byName["Greet"]
	require.True(t, ok)
	assert.Equal(t, "method", greet.Kind)
	assert.Equal(t, "func (g *Greeter) Greet() string", greet.Signature)
	assert.Greater(t, greet.Location.StartLine, greeter.Location.StartLine)

	maxRetries, ok := byName["MaxRetries"]
	require.True(t, ok)
	assert.Equal(t, "const", maxRetries.Kind)

	helper, ok := byName["helper"]
	require.True(t, ok)
	assert.Equal(t, "function", helper.Kind)
	assert.Empty(t, helper.Description)
}

func TestScanProject_SkipsTestsAndIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main_test.go"), []byte("package main\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor", "dep"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "vendor", "dep", "dep.go"), []byte("package dep\n"), 0644))

	records, err := NewGoParser().ScanProject(root)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "main.go", records[0].Path)
	require.Len(t, records[0].Symbols, 1)
	assert.Equal(t, "main", records[0].Symbols[0].Name)
}
