package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen      = "127.0.0.1:8080"
	defaultOutput      = "activities.ics"
	defaultRefreshCron = "0 * * * *"
	defaultLogLevel    = "info"
	defaultProductID   = "-//actcal//Activity Calendar//EN"
)

// CalendarConfig holds calendar-level properties of the exported document.
type CalendarConfig struct {
	// Name is written as X-WR-CALNAME so calendar apps show a label.
	Name string `yaml:"name" json:"name"`
	// ProductID is written as PRODID.
	ProductID string `yaml:"product_id" json:"product_id"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Source is where the activity feed comes from: a local JSON file path
	// or an http(s) URL.
	Source string `yaml:"source" json:"source"`

	// CacheDir holds conditional-request metadata and the last good body
	// for URL sources. Empty disables the cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Output is the path the .ics file is written to.
	Output string `yaml:"output" json:"output"`

	// Listen is the HTTP listen address used in serve mode.
	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is a 5-field cron spec (e.g. "*/30 * * * *") controlling
	// how often serve mode rebuilds the calendar.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`

	// BasicAuth, if set with both fields, protects every endpoint except
	// /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source:      "activities.json",
		CacheDir:    "./cache/source",
		Output:      defaultOutput,
		Listen:      defaultListen,
		RefreshCron: defaultRefreshCron,
		LogLevel:    defaultLogLevel,
		Calendar: CalendarConfig{
			Name:      "Activities",
			ProductID: defaultProductID,
		},
	}
}

// Normalize fills in missing values so partially-filled files still work.
func (c *Config) Normalize() {
	if c.Output == "" {
		c.Output = defaultOutput
	}
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Calendar.ProductID == "" {
		c.Calendar.ProductID = defaultProductID
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Load loads configuration from the given YAML path.
//
//   - Missing file: write DefaultConfig there (0600) and return it.
//   - Existing file: unmarshal and Normalize.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller decides whether an unwritable default is fatal.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".actcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
