package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when the config file omits a value.
const (
	DefaultListPollInterval    = 10 * time.Second
	DefaultMessagePollInterval = 3 * time.Second
)

// Backend holds the remote store connection settings.
type Backend struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// Poll holds the two fixed poll periods.
type Poll struct {
	ListIntervalMS    int `toml:"list_interval_ms"`
	MessageIntervalMS int `toml:"message_interval_ms"`
}

// Config represents the global ~/.studychat/config.toml.
type Config struct {
	DefaultSession string  `toml:"default_session"`
	Backend        Backend `toml:"backend"`
	Poll           Poll    `toml:"poll"`
}

// ListInterval returns the list poll period, defaulted.
func (c *Config) ListInterval() time.Duration {
	if c.Poll.ListIntervalMS <= 0 {
		return DefaultListPollInterval
	}
	return time.Duration(c.Poll.ListIntervalMS) * time.Millisecond
}

// MessageInterval returns the message poll period, defaulted.
func (c *Config) MessageInterval() time.Duration {
	if c.Poll.MessageIntervalMS <= 0 {
		return DefaultMessagePollInterval
	}
	return time.Duration(c.Poll.MessageIntervalMS) * time.Millisecond
}

// Load reads config from the given path. Returns an error if the file is
// missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
