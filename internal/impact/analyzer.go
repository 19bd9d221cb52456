package impact

import (
	"sort"

	"docsync/internal/corpus"
	"docsync/internal/scheduler"
)

// Analyzer maps a ChangeSet onto the documentation pages whose content
// depends on the changed source. Pages register the source files they were
// generated from plus the pages they depend on; analysis fans out from
// directly affected pages to their dependents.
type Analyzer struct {
	sources map[string][]string // source file path -> page IDs
	deps    map[string][]string // page ID -> dependency page IDs
	reverse map[string][]string // page ID -> dependent page IDs
}

// NewAnalyzer creates an empty analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		sources: make(map[string][]string),
		deps:    make(map[string][]string),
		reverse: make(map[string][]string),
	}
}

// RegisterPage records the traceability of one generated page: the source
// files it documents and the pages it depends on.
func (a *Analyzer) RegisterPage(pageID string, sourcePaths []string, dependsOn []string) {
	for _, path := range sourcePaths {
		a.sources[path] = append(a.sources[path], pageID)
	}
	a.deps[pageID] = append(a.deps[pageID], dependsOn...)
	for _, dep := range dependsOn {
		a.reverse[dep] = append(a.reverse[dep], pageID)
	}
}

// Dependencies returns the page IDs a page depends on; it satisfies the
// scheduler's DependencyResolver signature.
func (a *Analyzer) Dependencies(pageID string) []string {
	return a.deps[pageID]
}

// Analyze produces the affected-page list for a change set. Structural file
// changes (added or deleted files) outrank content edits; pages touched
// only through a dependency are ranked low. EstimatedChanges accumulates
// the symbol delta sizes of the triggering files.
func (a *Analyzer) Analyze(cs corpus.ChangeSet) []scheduler.AffectedPage {
	type pageImpact struct {
		changes    int
		structural bool
		direct     bool
	}
	impacts := make(map[string]*pageImpact)

	touch := func(pageID string) *pageImpact {
		if imp, ok := impacts[pageID]; ok {
			return imp
		}
		imp := &pageImpact{}
		impacts[pageID] = imp
		return imp
	}

	for _, fc := range cs.Files {
		weight := 1
		if fc.SymbolDelta != nil {
			weight += len(fc.SymbolDelta.Added) + len(fc.SymbolDelta.Modified) + len(fc.SymbolDelta.Deleted)
		}
		for _, pageID := range a.sources[fc.Path] {
			imp := touch(pageID)
			imp.direct = true
			imp.changes += weight
			if fc.ChangeType == corpus.ChangeAdded || fc.ChangeType == corpus.ChangeDeleted {
				imp.structural = true
			}
		}
	}

	// Fan out to dependent pages, one hop, without overriding direct hits.
	for pageID := range impacts {
		for _, dependent := range a.reverse[pageID] {
			if _, ok := impacts[dependent]; !ok {
				impacts[dependent] = &pageImpact{changes: 1}
			}
		}
	}

	pages := make([]scheduler.AffectedPage, 0, len(impacts))
	for pageID, imp := range impacts {
		pages = append(pages, scheduler.AffectedPage{
			PageID:           pageID,
			Priority:         priorityFor(imp.direct, imp.structural, imp.changes),
			EstimatedChanges: imp.changes,
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageID < pages[j].PageID })
	return pages
}

func priorityFor(direct, structural bool, changes int) string {
	switch {
	case !direct:
		return "low"
	case changes >= 20:
		return "critical"
	case structural:
		return "high"
	default:
		return "normal"
	}
}
