// Package config loads portscope.yaml, the optional per-project
// configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bemindlab/portscope/src/internal/framework"
	"github.com/bemindlab/portscope/src/internal/types"
)

// FileName is the configuration file looked up in the working directory
// and its parents.
const FileName = "portscope.yaml"

// Config is the file schema. Zero values mean "use the default".
type Config struct {
	// IntervalMS is the poll interval in milliseconds.
	IntervalMS int `yaml:"intervalMs"`

	// DevRanges overrides the default port ranges scanned in dev mode.
	DevRanges []types.PortRange `yaml:"devRanges"`

	// DashboardPort is where the dashboard server listens.
	DashboardPort int `yaml:"dashboardPort"`

	// Frameworks are extra detection rules, checked before the builtin
	// table.
	Frameworks []framework.Rule `yaml:"frameworks"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		IntervalMS:    2000,
		DashboardPort: 7070,
	}
}

// Interval returns the poll interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// Load reads and validates a configuration file. Fields not present in
// the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Find searches for the configuration file in startDir and its parents,
// stopping at a .git directory (repository root) or the filesystem root.
// It returns an empty string when no file exists.
func Find(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := absDir
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// LoadOrDefault resolves configuration for a working directory: the
// nearest portscope.yaml if one exists, otherwise defaults.
func LoadOrDefault(startDir string) (*Config, error) {
	path, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) validate() error {
	if c.IntervalMS < 1000 {
		return fmt.Errorf("intervalMs must be at least 1000, got %d: %w", c.IntervalMS, types.ErrInvalidInterval)
	}
	if c.DashboardPort != 0 {
		if err := types.ValidatePort(c.DashboardPort); err != nil {
			return fmt.Errorf("dashboardPort: %w", err)
		}
	}
	for _, r := range c.DevRanges {
		if err := types.ValidateRange(r.Start, r.End); err != nil {
			return fmt.Errorf("devRanges entry %d-%d: %w", r.Start, r.End, err)
		}
	}
	for _, rule := range c.Frameworks {
		if rule.Pattern == "" {
			return errors.New("frameworks entries need a pattern")
		}
		if rule.Info.Name == "" {
			return fmt.Errorf("framework rule %q needs a name", rule.Pattern)
		}
	}
	return nil
}
