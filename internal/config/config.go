// Package config loads the argos configuration from a YAML file, a .env
// file and the environment.
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
)

// Config is the top-level argos configuration.
type Config struct {
	Catalog string        `yaml:"catalog"`
	Workers int           `yaml:"workers"`
	Pacing  time.Duration `yaml:"pacing"`
	// CacheSize bounds how many samples one check run keeps.
	CacheSize int          `yaml:"cache_size"`
	ReportDir string       `yaml:"report_dir"`
	// Audit is the SQLite audit trail path; empty disables it.
	Audit     string       `yaml:"audit"`
	Fetch     FetchConfig  `yaml:"fetch"`
	Render    RenderConfig `yaml:"render"`
	Serve     ServeConfig  `yaml:"serve"`
}

// FetchConfig controls the plain channel.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"` // empty: rotate
}

// RenderConfig controls the rendered channel.
type RenderConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Remote      string        `yaml:"remote"`
	Bin         string        `yaml:"bin"`
	Mode        string        `yaml:"mode"` // headless | headful
	XvfbDisplay string        `yaml:"xvfb_display"`
	PageLoad    time.Duration `yaml:"page_load"`
	DOMReady    time.Duration `yaml:"dom_ready"`
	PollEvery   time.Duration `yaml:"poll_every"`
	StableFor   time.Duration `yaml:"stable_for"`
	StabilizeBy time.Duration `yaml:"stabilize_by"`
	Settle      time.Duration `yaml:"settle"`
}

// ServeConfig controls the HTTP API.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads .env (if present), then the YAML file at path (skipped when
// path is empty), then ARGOS_* environment overrides, and fills defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("ARGOS_CATALOG")); v != "" {
		c.Catalog = v
	}
	if v := strings.TrimSpace(os.Getenv("ARGOS_RENDER")); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: ARGOS_RENDER=%q: %w", v, err)
		}
		c.Render.Enabled = on
	}
	if v := strings.TrimSpace(os.Getenv("ARGOS_AUDIT")); v != "" {
		c.Audit = v
	}
	if v := strings.TrimSpace(os.Getenv("ARGOS_BROWSER_REMOTE")); v != "" {
		c.Render.Remote = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Catalog == "" {
		c.Catalog = "sitios.json"
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Pacing <= 0 {
		c.Pacing = 300 * time.Millisecond
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 512
	}
	if c.ReportDir == "" {
		c.ReportDir = "."
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 18 * time.Second
	}
	if c.Render.Mode == "" {
		c.Render.Mode = "headless"
	}
	if c.Render.XvfbDisplay == "" && c.Render.Mode == "headful" && os.Getenv("DISPLAY") == "" {
		c.Render.XvfbDisplay = ":99"
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8080"
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Render.Mode {
	case "headless", "headful":
	default:
		errs = append(errs, fmt.Errorf("render.mode %q: want headless or headful", c.Render.Mode))
	}
	if dir, err := os.Stat(c.ReportDir); err == nil && !dir.IsDir() {
		errs = append(errs, fmt.Errorf("report_dir %q is not a directory", c.ReportDir))
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("report_dir: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
