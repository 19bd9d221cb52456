package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"docsync/internal/config"
	"docsync/internal/git"
	"docsync/internal/hashcache"
	"docsync/internal/pagestore"
	"docsync/internal/pipeline"
	"docsync/internal/snapshot"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "docsync",
		Short: "Incremental documentation synchronization engine",
	}
	configPath string
	forceSync  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")

	syncCmd.Flags().BoolVarP(&forceSync, "force", "f", false, "Regenerate all pages even when no changes are detected")

	cacheCmd.AddCommand(cacheClearCmd)

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

var syncCmd = &cobra.Command{
	Use:   "sync [path]",
	Short: "Detect changes since the last snapshot and regenerate affected pages",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if len(args) > 0 {
			cfg.Project.Root = args[0]
		}

		fmt.Printf("📂 Synchronizing project: %s\n", cfg.Project.Root)
		start := time.Now()

		if err := pipeline.NewSync(cfg).Run(context.Background(), forceSync); err != nil {
			log.Fatalf("Sync failed: %v", err)
		}

		fmt.Printf("🎉 Sync complete in %v.\n", time.Since(start).Round(time.Millisecond))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest snapshot, cache statistics, and stored pages",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		store := snapshot.NewStore(cfg.Snapshots.Dir)
		if latest := store.Latest(); latest != nil {
			fmt.Printf("📸 Latest snapshot: %s (commit %s, %d files, %d symbols, %s)\n",
				latest.ID[:8], latest.CommitHash, latest.Metadata.TotalFiles,
				latest.Metadata.TotalSymbols, latest.CreatedAt.Format(time.RFC3339))
			if changed, err := git.ChangedFiles(cfg.Project.Root, latest.CommitHash); err == nil && len(changed) > 0 {
				fmt.Printf("📝 %d files changed since the baseline commit:\n", len(changed))
				for _, f := range changed {
					fmt.Printf("  -> %s\n", f)
				}
			}
		} else {
			fmt.Println("📸 No snapshots yet. Run 'docsync sync' to create a baseline.")
		}

		cache := hashcache.New(cfg.CacheOptions())
		defer cache.Close()
		stats := cache.GetStats()
		files, symbols := cache.EntryCount()
		fmt.Printf("💾 Hash cache: %d file / %d symbol entries (%d hits / %d misses, %.1f%% hit rate)\n",
			files, symbols, stats.Hits, stats.Misses, stats.HitRate*100)

		pages, err := pagestore.NewSQLiteStore(cfg.Pages.DBPath)
		if err != nil {
			log.Fatalf("Failed to open page store: %v", err)
		}
		defer pages.Close()

		list, err := pages.ListPages(context.Background())
		if err != nil {
			log.Fatalf("Failed to list pages: %v", err)
		}
		fmt.Printf("📄 %d documentation pages:\n", len(list))
		for _, p := range list {
			fmt.Printf("  -> %s (%s, updated %s)\n", p.ID, p.Title, p.UpdatedAt.Format(time.RFC3339))
		}
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the content hash cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached hashes, forcing full rehashing on the next sync",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		cache := hashcache.New(cfg.CacheOptions())
		files, symbols := cache.EntryCount()
		cache.InvalidateAll()
		if err := cache.Close(); err != nil {
			log.Fatalf("Failed to persist cache: %v", err)
		}

		fmt.Printf("🗑️  Cleared %d file and %d symbol cache entries.\n", files, symbols)
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored corpus snapshots, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		snaps := snapshot.NewStore(cfg.Snapshots.Dir).List()
		if len(snaps) == 0 {
			fmt.Println("📸 No snapshots yet.")
			return
		}
		for _, snap := range snaps {
			fmt.Printf("%s  commit=%s  files=%d  symbols=%d  %s\n",
				snap.ID[:8], snap.CommitHash, snap.Metadata.TotalFiles,
				snap.Metadata.TotalSymbols, snap.CreatedAt.Format(time.RFC3339))
		}
	},
}
