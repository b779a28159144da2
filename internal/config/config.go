package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config represents the complete p4vhelper configuration
type Config struct {
	P4      P4Config      `yaml:"p4"`
	Depot   DepotConfig   `yaml:"depot"`
	History HistoryConfig `yaml:"history"`
	Submit  SubmitConfig  `yaml:"submit"`
	Paths   PathsConfig   `yaml:"paths"`
	Workers int           `yaml:"workers"`
}

// P4Config configures how the p4 client is launched
type P4Config struct {
	Binary string `yaml:"binary"`
	Port   string `yaml:"port"`
	User   string `yaml:"user"`
	Client string `yaml:"client"`
	// ProbeTimeout bounds the connectivity check run before any workflow.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// DepotConfig configures the server-side tree
type DepotConfig struct {
	Root string `yaml:"root"`
}

// HistoryConfig configures the change history listing
type HistoryConfig struct {
	PageSize int `yaml:"page_size"`
}

// SubmitConfig configures reconcile and submit
type SubmitConfig struct {
	Reasons []string `yaml:"reasons"`
}

// PathsConfig configures local files
type PathsConfig struct {
	SessionFile string `yaml:"session_file"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file. A missing file is not an
// error when optional is set; the defaults are returned instead.
func Load(fsys afero.Fs, path string, optional bool) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.P4.Binary = os.ExpandEnv(c.P4.Binary)
	c.P4.Port = os.ExpandEnv(c.P4.Port)
	c.P4.User = os.ExpandEnv(c.P4.User)
	c.P4.Client = os.ExpandEnv(c.P4.Client)
	c.Depot.Root = os.ExpandEnv(c.Depot.Root)
	c.Paths.SessionFile = os.ExpandEnv(c.Paths.SessionFile)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.P4.Binary == "" {
		c.P4.Binary = "p4"
	}
	if c.P4.ProbeTimeout == 0 {
		c.P4.ProbeTimeout = 5 * time.Second
	}
	if c.Depot.Root == "" {
		c.Depot.Root = "//depot"
	}
	if c.History.PageSize == 0 {
		c.History.PageSize = 100
	}
	if len(c.Submit.Reasons) == 0 {
		c.Submit.Reasons = []string{"New Submission", "Update", "Add"}
	}
	if c.Workers == 0 {
		c.Workers = 2
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Depot.Root, "//") {
		return fmt.Errorf("depot.root must be a depot path starting with //: %s", c.Depot.Root)
	}
	if strings.ContainsAny(c.Depot.Root, "*.") {
		return fmt.Errorf("depot.root must not contain wildcards: %s", c.Depot.Root)
	}
	if c.P4.ProbeTimeout < 0 {
		return fmt.Errorf("p4.probe_timeout must not be negative")
	}
	if c.History.PageSize < 1 {
		return fmt.Errorf("history.page_size must be at least 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	for _, r := range c.Submit.Reasons {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("submit.reasons must not contain empty entries")
		}
	}
	if c.Paths.SessionFile != "" && !filepath.IsAbs(c.Paths.SessionFile) {
		return fmt.Errorf("paths.session_file must be an absolute path: %s", c.Paths.SessionFile)
	}
	return nil
}

// DepotRoot returns the depot prefix without a trailing slash
func (c *Config) DepotRoot() string {
	return strings.TrimRight(c.Depot.Root, "/")
}

// HistoryPath returns the depot path filter used for change history
func (c *Config) HistoryPath() string {
	return c.DepotRoot() + "/..."
}

// SearchPattern returns the "p4 dirs" pattern matching app folders named app
func (c *Config) SearchPattern(app string) string {
	return c.DepotRoot() + "/*/*/*/*" + app
}
