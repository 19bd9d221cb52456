package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"docsync/internal/config"
	"docsync/internal/corpus"
	"docsync/internal/detector"
	"docsync/internal/generator"
	"docsync/internal/git"
	"docsync/internal/hashcache"
	"docsync/internal/impact"
	"docsync/internal/merge"
	"docsync/internal/pagestore"
	"docsync/internal/parser"
	"docsync/internal/scheduler"
	"docsync/internal/snapshot"
)

// overviewPage is regenerated whenever any package page changes.
const overviewPage = "overview"

// Sync drives one incremental synchronization cycle: diff the current
// corpus against the latest snapshot, regenerate only the affected pages
// in parallel, then persist a new snapshot as the next baseline.
type Sync struct {
	cfg *config.Config
}

func NewSync(cfg *config.Config) *Sync {
	return &Sync{cfg: cfg}
}

// Run executes one cycle. With force set, every page backed by the corpus
// is regenerated even when no changes are detected.
func (s *Sync) Run(ctx context.Context, force bool) error {
	root := s.cfg.Project.Root

	cache := hashcache.New(s.cfg.CacheOptions())
	defer cache.Close()
	snapStore := snapshot.NewStore(s.cfg.Snapshots.Dir)

	records, err := parser.NewGoParser().ScanProject(root)
	if err != nil {
		return fmt.Errorf("failed to scan project: %w", err)
	}
	fmt.Printf("📂 Parsed %d source files.\n", len(records))

	baseline := snapStore.Latest()
	var oldFiles []corpus.FileRecord
	baseCommit := "initial"
	if baseline != nil {
		oldFiles = baseline.Files
		baseCommit = baseline.CommitHash
	}
	headCommit := git.HeadCommit(root)

	changeSet := detector.New(cache).Detect(oldFiles, records, baseCommit, headCommit)
	if len(changeSet.Files) == 0 {
		if !force {
			fmt.Println("✅ No changes detected.")
			return nil
		}
		fmt.Println("🧭 No changes detected. Regenerating all pages from current corpus (--force).")
		changeSet = fullChangeSet(records, baseCommit, headCommit)
	} else {
		fmt.Printf("📝 Detected %d changed files (%d added, %d modified, %d deleted).\n",
			changeSet.Summary.TotalFiles, changeSet.Summary.AddedFiles,
			changeSet.Summary.ModifiedFiles, changeSet.Summary.DeletedFiles)
	}

	pages, err := pagestore.NewSQLiteStore(s.cfg.Pages.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open page store: %w", err)
	}
	defer pages.Close()

	analyzer := buildAnalyzer(records, changeSet)
	affected := analyzer.Analyze(changeSet)
	if len(affected) == 0 {
		fmt.Println("✅ No documentation pages affected.")
		return s.saveSnapshot(snapStore, records, headCommit)
	}
	fmt.Printf("🔍 %d pages affected.\n", len(affected))

	result, err := s.regenerate(ctx, analyzer, affected, changeSet, pages)
	if err != nil {
		return err
	}
	fmt.Printf("✍️  Regeneration finished in %v: %d completed, %d failed, %d skipped (parallelism %d, %d batches).\n",
		result.TotalTime.Round(time.Millisecond), len(result.CompletedPages),
		len(result.FailedPages), len(result.SkippedPages), result.Parallelism, result.Batches)
	for _, pageID := range result.FailedPages {
		log.Printf("Warning: page %s failed to regenerate", pageID)
	}

	return s.saveSnapshot(snapStore, records, headCommit)
}

func (s *Sync) regenerate(ctx context.Context, analyzer *impact.Analyzer, affected []scheduler.AffectedPage, cs corpus.ChangeSet, pages *pagestore.SQLiteStore) (*scheduler.Result, error) {
	gen := s.pageGenerator(ctx)

	changesByPage := make(map[string][]corpus.FileChange)
	for _, fc := range cs.Files {
		pageID := pageIDFor(fc.Path)
		changesByPage[pageID] = append(changesByPage[pageID], fc)
		changesByPage[overviewPage] = append(changesByPage[overviewPage], fc)
	}

	schedCfg := s.cfg.SchedulerConfig()
	schedCfg.DependencyResolver = analyzer.Dependencies
	sched := scheduler.New(schedCfg)
	sched.Subscribe(func(ev scheduler.Event) {
		switch ev.Type {
		case scheduler.EventTaskRetrying:
			log.Printf("Warning: retrying page %s (attempt %d): %v", ev.Task.PageID, ev.Attempt, ev.Err)
		case scheduler.EventTaskCompleted:
			fmt.Printf("  -> %s updated\n", ev.Task.PageID)
		}
	})

	updateFn := func(ctx context.Context, pageID string) error {
		content, err := gen.GeneratePage(ctx, pageID, changesByPage[pageID])
		if err != nil {
			return err
		}

		changeType := corpus.ChangeModified
		oldContent := ""
		existing, err := pages.GetPage(ctx, pageID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			changeType = corpus.ChangeAdded
		case err != nil:
			return err
		default:
			oldContent = existing.Content
		}

		return pages.SavePage(ctx, &pagestore.Page{
			ID:      pageID,
			Title:   pageTitle(pageID),
			Content: merge.MergeContent(oldContent, content, changeType),
		})
	}

	return sched.UpdatePagesParallel(ctx, affected, updateFn)
}

// pageGenerator picks Gemini when an API key is configured, the local
// fallback otherwise. A failed client setup degrades rather than aborting
// the sync.
func (s *Sync) pageGenerator(ctx context.Context) generator.PageGenerator {
	if s.cfg.AI.APIKey == "" {
		return generator.FallbackGenerator{}
	}
	gen, err := generator.NewGeminiGenerator(ctx, s.cfg.AI.APIKey, s.cfg.AI.Model)
	if err != nil {
		log.Printf("Warning: AI generator unavailable, using fallback: %v", err)
		return generator.FallbackGenerator{}
	}
	return gen
}

func (s *Sync) saveSnapshot(store *snapshot.Store, records []corpus.FileRecord, commit string) error {
	snap := snapshot.Create(records, commit)
	if err := store.Save(snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	fmt.Printf("📸 Snapshot %s saved (%d files, commit %s).\n", snap.ID[:8], snap.Metadata.TotalFiles, shortCommit(commit))
	return nil
}

// buildAnalyzer derives page traceability from the corpus layout: one page
// per top-level directory plus an overview page depending on all of them.
func buildAnalyzer(records []corpus.FileRecord, cs corpus.ChangeSet) *impact.Analyzer {
	sources := make(map[string][]string)
	addSource := func(filePath string) {
		pageID := pageIDFor(filePath)
		sources[pageID] = append(sources[pageID], filePath)
	}
	for _, rec := range records {
		addSource(rec.Path)
	}
	for _, fc := range cs.Files {
		if fc.ChangeType == corpus.ChangeDeleted {
			addSource(fc.Path)
		}
	}

	analyzer := impact.NewAnalyzer()
	pageIDs := make([]string, 0, len(sources))
	for pageID, paths := range sources {
		analyzer.RegisterPage(pageID, paths, nil)
		pageIDs = append(pageIDs, pageID)
	}
	analyzer.RegisterPage(overviewPage, nil, pageIDs)
	return analyzer
}

func fullChangeSet(records []corpus.FileRecord, baseCommit, headCommit string) corpus.ChangeSet {
	cs := corpus.ChangeSet{Timestamp: time.Now(), BaseCommit: baseCommit, HeadCommit: headCommit}
	for _, rec := range records {
		cs.Files = append(cs.Files, corpus.FileChange{
			Path:       rec.Path,
			ChangeType: corpus.ChangeModified,
			NewContent: rec.Content,
		})
	}
	cs.Summarize()
	return cs
}

func pageIDFor(filePath string) string {
	dir := path.Dir(filePath)
	if dir == "." || dir == "/" {
		return "pkg-root"
	}
	return "pkg-" + strings.ReplaceAll(dir, "/", "-")
}

func pageTitle(pageID string) string {
	if pageID == overviewPage {
		return "Project Overview"
	}
	return strings.TrimPrefix(pageID, "pkg-")
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
