// Package config loads psi settings from .psi.yaml, .env and PSI_*
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oxhq/psitree/index"
)

// FileName is the configuration file looked up in the working directory
const FileName = ".psi.yaml"

// Config holds the settings shared by every psi command
type Config struct {
	// Database
	DatabaseURL string `yaml:"database_url"`

	// Indexing
	Include  []string      `yaml:"include,omitempty"`
	Exclude  []string      `yaml:"exclude,omitempty"`
	Workers  int           `yaml:"workers"`
	MaxFiles int           `yaml:"max_files"`
	Debounce time.Duration `yaml:"debounce"`

	// Parsing
	CacheMaxAge time.Duration `yaml:"cache_max_age"`

	// Debug
	Debug bool `yaml:"debug"`
}

// Default returns a config with sensible defaults
func Default() Config {
	return Config{
		DatabaseURL: ".psi/index.db",
		Include:     append([]string(nil), index.DefaultInclude...),
		Exclude:     append([]string(nil), index.DefaultExclude...),
		Workers:     0,
		MaxFiles:    0,
		Debounce:    index.DefaultDebounce,
		CacheMaxAge: 5 * time.Minute,
		Debug:       false,
	}
}

// Load builds the effective configuration. An empty path reads FileName if
// it exists; an explicit path must exist.
func Load(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = FileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PSI_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("PSI_INCLUDE"); v != "" {
		c.Include = splitList(v)
	}
	if v := os.Getenv("PSI_EXCLUDE"); v != "" {
		c.Exclude = splitList(v)
	}
	if v := os.Getenv("PSI_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PSI_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("PSI_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PSI_MAX_FILES: %w", err)
		}
		c.MaxFiles = n
	}
	if v := os.Getenv("PSI_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PSI_DEBOUNCE: %w", err)
		}
		c.Debounce = d
	}
	if v := os.Getenv("PSI_CACHE_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PSI_CACHE_MAX_AGE: %w", err)
		}
		c.CacheMaxAge = d
	}
	if v := os.Getenv("PSI_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PSI_DEBUG: %w", err)
		}
		c.Debug = b
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects settings no command can run with
func (c Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("config: database_url is empty")
	case c.Workers < 0:
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	case c.MaxFiles < 0:
		return fmt.Errorf("config: max_files must not be negative, got %d", c.MaxFiles)
	case c.Debounce < 0 || c.CacheMaxAge < 0:
		return errors.New("config: durations must not be negative")
	}
	return nil
}

// Scope returns the index scope rooted at root
func (c Config) Scope(root string) index.Scope {
	return index.Scope{
		Root:     root,
		Include:  c.Include,
		Exclude:  c.Exclude,
		MaxFiles: c.MaxFiles,
	}
}

// Save writes c as YAML to path
func (c Config) Save(path string) error {
	d, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0o644)
}

// Init writes the default configuration to path unless a file is already
// there and force is false
func Init(path string, force bool) error {
	if path == "" {
		path = FileName
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists", path)
	}
	return Default().Save(path)
}
