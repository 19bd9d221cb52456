package config

import (
	"fmt"
	"os"
	"time"

	"docsync/internal/hashcache"
	"docsync/internal/scheduler"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration decodes YAML scalars like "30s", "500ms", or "0" via
// time.ParseDuration; yaml.v3 cannot unmarshal scalars into time.Duration
// directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	Project struct {
		Root string `yaml:"root"`
	} `yaml:"project"`
	AI struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"ai"`
	Cache struct {
		Path       string   `yaml:"path"`
		MaxAge     Duration `yaml:"max_age"`
		MaxEntries int      `yaml:"max_entries"`
		FlushDelay Duration `yaml:"flush_delay"`
	} `yaml:"cache"`
	Snapshots struct {
		Dir string `yaml:"dir"`
	} `yaml:"snapshots"`
	Scheduler struct {
		MaxParallelism int      `yaml:"max_parallelism"`
		BatchSize      int      `yaml:"batch_size"`
		Timeout        Duration `yaml:"timeout"`
		RetryAttempts  int      `yaml:"retry_attempts"`
		RetryDelay     Duration `yaml:"retry_delay"`
		FailOnCycle    bool     `yaml:"fail_on_cycle"`
	} `yaml:"scheduler"`
	Pages struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"pages"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Project.Root = "."
	cfg.AI.Model = "gemini-2.5-flash-lite"
	cfg.Cache.Path = ".docsync/hashes.json"
	cfg.Cache.MaxAge = Duration(7 * 24 * time.Hour)
	cfg.Cache.MaxEntries = 10000
	cfg.Cache.FlushDelay = Duration(500 * time.Millisecond)
	cfg.Snapshots.Dir = ".docsync/snapshots"
	cfg.Pages.DBPath = ".docsync/pages.db"

	sched := scheduler.DefaultConfig()
	cfg.Scheduler.MaxParallelism = sched.MaxParallelism
	cfg.Scheduler.BatchSize = sched.BatchSize
	cfg.Scheduler.Timeout = Duration(sched.Timeout)
	cfg.Scheduler.RetryAttempts = sched.RetryAttempts
	cfg.Scheduler.RetryDelay = Duration(sched.RetryDelay)
	return cfg
}

// LoadConfig reads the YAML config file, falling back to defaults when it
// is missing, then applies .env and environment overrides.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := defaults()

	// 2. Load YAML config
	if file, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	}

	// 3. Override with Environment Variables if present
	if apiKey := os.Getenv("DOCSYNC_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if provider := os.Getenv("DOCSYNC_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if root := os.Getenv("DOCSYNC_PROJECT_ROOT"); root != "" {
		cfg.Project.Root = root
	}

	return cfg, nil
}

// CacheOptions converts the cache section into hashcache options.
func (c *Config) CacheOptions() hashcache.Options {
	return hashcache.Options{
		Path:       c.Cache.Path,
		MaxAge:     time.Duration(c.Cache.MaxAge),
		MaxEntries: c.Cache.MaxEntries,
		FlushDelay: time.Duration(c.Cache.FlushDelay),
	}
}

// SchedulerConfig converts the scheduler section into scheduler options.
// The DependencyResolver is runtime wiring, not configuration; callers set
// it on the returned value.
func (c *Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		MaxParallelism: c.Scheduler.MaxParallelism,
		BatchSize:      c.Scheduler.BatchSize,
		Timeout:        time.Duration(c.Scheduler.Timeout),
		RetryAttempts:  c.Scheduler.RetryAttempts,
		RetryDelay:     time.Duration(c.Scheduler.RetryDelay),
		FailOnCycle:    c.Scheduler.FailOnCycle,
	}
}
