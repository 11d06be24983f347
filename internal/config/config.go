package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the catalog client's configuration file.
type Config struct {
	// CacheDir holds the stats artifact and the icon database.
	CacheDir string `yaml:"cache_dir"`

	// Catalogs lists the metadata documents to ingest.
	Catalogs []string `yaml:"catalogs"`

	Stats StatsConfig `yaml:"stats"`
	Icons IconsConfig `yaml:"icons"`
}

type StatsConfig struct {
	ArtifactURL string `yaml:"artifact_url"`
	MetadataURL string `yaml:"metadata_url"`

	// MaxAgeDays is the freshness window before a background refresh
	// is attempted. A stale cache keeps serving until replaced.
	MaxAgeDays int `yaml:"max_age_days"`
}

type IconsConfig struct {
	Workers   int     `yaml:"workers"`
	FetchRate float64 `yaml:"fetch_rate"`
	MediaDir  string  `yaml:"media_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cacheDir := "appdex"
	if base, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(base, "appdex")
	}
	return &Config{
		CacheDir: cacheDir,
		Stats: StatsConfig{
			MaxAgeDays: 30,
		},
		Icons: IconsConfig{
			Workers:   4,
			FetchRate: 20,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error;
// the defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required")
	}
	if c.Stats.MaxAgeDays < 0 {
		return fmt.Errorf("stats.max_age_days must be >= 0")
	}
	if c.Icons.Workers < 0 {
		return fmt.Errorf("icons.workers must be >= 0")
	}
	if c.Icons.FetchRate < 0 {
		return fmt.Errorf("icons.fetch_rate must be >= 0")
	}
	return nil
}

// StatsPath is the on-disk location of the stats artifact.
func (c *Config) StatsPath() string {
	return filepath.Join(c.CacheDir, "stats.bin")
}

// IconDBPath is the on-disk location of the icon database.
func (c *Config) IconDBPath() string {
	return filepath.Join(c.CacheDir, "icons.db")
}

// StatsMaxAge converts the configured window to a duration.
func (c *Config) StatsMaxAge() time.Duration {
	days := c.Stats.MaxAgeDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}
