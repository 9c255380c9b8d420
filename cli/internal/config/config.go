package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultInterval = time.Minute
	defaultTimeout  = 30 * time.Second
)

// Config holds the CLI configuration. Durations are stored as Go duration
// strings ("60s", "5m").
type Config struct {
	RefreshInterval string `yaml:"refresh_interval,omitempty"`
	HTTPTimeout     string `yaml:"http_timeout,omitempty"`
	DBPath          string `yaml:"db_path,omitempty"`
}

// configPath returns the path to the config file
func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cursortop.yaml"), nil
}

// Load loads the configuration from disk. A missing file yields an empty
// config, not an error.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return loadFrom(path)
}

func loadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save saves the configuration to disk with owner-only permissions.
func Save(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	return saveTo(cfg, path)
}

func saveTo(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Interval returns the refresh interval, defaulting to one minute when
// unset or unparsable.
func (c *Config) Interval() time.Duration {
	return parseDuration(c.RefreshInterval, defaultInterval)
}

// Timeout returns the per-request HTTP timeout, defaulting to 30 seconds
// when unset or unparsable.
func (c *Config) Timeout() time.Duration {
	return parseDuration(c.HTTPTimeout, defaultTimeout)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ValidateDuration checks a duration string supplied on the command line.
func ValidateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %q", s)
	}
	return nil
}
