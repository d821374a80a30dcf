package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source types a collection can be backed by.
const (
	SourceLocal       = "local"
	SourceRemote      = "remote"
	SourceMusicBrainz = "musicbrainz"
)

// Config contains the program configuration
type Config struct {
	Verbose      bool               `yaml:"verbose"`
	LogLevel     string             `yaml:"log_level"`
	LogFormat    string             `yaml:"log_format"`
	LogFile      string             `yaml:"log_file"`
	ParallelJobs int                `yaml:"parallel_jobs"`
	JobTimeout   time.Duration      `yaml:"job_timeout"`
	JobRetention time.Duration      `yaml:"job_retention"`
	CacheDir     string             `yaml:"cache_dir"`
	ListenAddr   string             `yaml:"listen_addr"`
	Collections  []CollectionConfig `yaml:"collections"`
}

// CollectionConfig describes one collection and the resolver behind it.
type CollectionConfig struct {
	ID                string  `yaml:"id"`
	Name              string  `yaml:"name"`
	IconPath          string  `yaml:"icon_path"`
	Source            string  `yaml:"source"`
	Path              string  `yaml:"path,omitempty"`
	URL               string  `yaml:"url,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
	Burst             int     `yaml:"burst,omitempty"`
	OnlyLocal         bool    `yaml:"only_local"`
	// Fallbacks are asked, in order, when the primary source answers with
	// nothing. Entries are "musicbrainz" or the URL of another resolver.
	Fallbacks []string `yaml:"fallbacks,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		LogLevel:     "info",
		LogFormat:    "text",
		ParallelJobs: 4,
		JobTimeout:   30 * time.Second,
		JobRetention: time.Hour,
		CacheDir:     filepath.Join(homeDir(), ".cache", "tomahawk"),
		ListenAddr:   ":8080",
		Collections: []CollectionConfig{
			{
				ID:        "local",
				Name:      "Local Music",
				Source:    SourceLocal,
				Path:      filepath.Join(homeDir(), "Music"),
				OnlyLocal: true,
			},
		},
	}
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.CacheDir = ExpandHome(cfg.CacheDir)
	cfg.LogFile = ExpandHome(cfg.LogFile)
	for i := range cfg.Collections {
		cfg.Collections[i].Path = ExpandHome(cfg.Collections[i].Path)
		cfg.Collections[i].IconPath = ExpandHome(cfg.Collections[i].IconPath)
	}

	return cfg, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := homeDir()
	locations := []string{
		"./tomahawk.yaml",
		"./tomahawk.yml",
		filepath.Join(home, ".config", "tomahawk", "config.yaml"),
		filepath.Join(home, ".config", "tomahawk", "config.yml"),
		filepath.Join(home, ".tomahawk.yaml"),
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the current configuration to a YAML file
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "tomahawk", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path
func GetDefaultLogPath() string {
	return filepath.Join(homeDir(), ".local", "share", "tomahawk", "logs")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// Collection returns the collection with the given id.
func (c *Config) Collection(id string) (CollectionConfig, bool) {
	for _, cc := range c.Collections {
		if cc.ID == id {
			return cc, true
		}
	}
	return CollectionConfig{}, false
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ParallelJobs < 1 {
		return fmt.Errorf("parallel jobs must be at least 1, got %d", c.ParallelJobs)
	}
	if c.ParallelJobs > 32 {
		return fmt.Errorf("parallel jobs cannot exceed 32, got %d", c.ParallelJobs)
	}

	if c.JobTimeout <= 0 {
		return fmt.Errorf("job_timeout must be positive, got %s", c.JobTimeout)
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported log format '%s', valid formats: text, json", c.LogFormat)
	}

	if len(c.Collections) == 0 {
		return fmt.Errorf("at least one collection must be configured")
	}

	seen := make(map[string]bool, len(c.Collections))
	for i, cc := range c.Collections {
		if cc.ID == "" {
			return fmt.Errorf("collections[%d]: id cannot be empty", i)
		}
		if seen[cc.ID] {
			return fmt.Errorf("collections[%d]: duplicate id %q", i, cc.ID)
		}
		seen[cc.ID] = true

		switch cc.Source {
		case SourceLocal:
			if cc.Path == "" {
				return fmt.Errorf("collection %q: local source requires a path", cc.ID)
			}
		case SourceRemote:
			if !isHTTPURL(cc.URL) {
				return fmt.Errorf("collection %q: remote url must start with http:// or https://", cc.ID)
			}
			if cc.RequestsPerSecond < 0 {
				return fmt.Errorf("collection %q: requests_per_second cannot be negative", cc.ID)
			}
		default:
			return fmt.Errorf("collection %q: unknown source %q, valid sources: local, remote", cc.ID, cc.Source)
		}

		for _, fb := range cc.Fallbacks {
			if fb != SourceMusicBrainz && !isHTTPURL(fb) {
				return fmt.Errorf("collection %q: fallback %q must be musicbrainz or an http(s) url", cc.ID, fb)
			}
		}
	}

	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
