package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "visitbatch"

// ErrNoTarget is returned by Validate when no target URL is configured.
var ErrNoTarget = errors.New("target.url is not set; set it in config.toml or VISITBATCH_TARGET_URL")

// Config holds all application configuration
type Config struct {
	Version int           `toml:"version"`
	Server  ServerConfig  `toml:"server"`
	Target  TargetConfig  `toml:"target"`
	Batch   BatchConfig   `toml:"batch"`
	Browser BrowserConfig `toml:"browser"`
	Store   StoreConfig   `toml:"store"`
}

type ServerConfig struct {
	Port int `toml:"port"`
}

// TargetConfig describes the page every visit loads. Referral and Device
// are optional; empty means a random pick per visit.
type TargetConfig struct {
	URL          string `toml:"url"`
	DwellSeconds int    `toml:"dwell_seconds"`
	Referral     string `toml:"referral"`
	Device       string `toml:"device"`
}

type BatchConfig struct {
	Size    int `toml:"size"`
	PauseMS int `toml:"pause_ms"`
}

type BrowserConfig struct {
	Headless   bool   `toml:"headless"`
	ChromePath string `toml:"chrome_path"`
}

type StoreConfig struct {
	// Path of the SQLite history database. Empty uses the cache dir.
	Path string `toml:"path"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Port: 3000,
		},
		Target: TargetConfig{
			DwellSeconds: 8,
		},
		Batch: BatchConfig{
			Size:    50,
			PauseMS: 1000,
		},
		Browser: BrowserConfig{
			Headless: true,
		},
	}
}

// Dwell returns the configured dwell time as a duration.
func (c *Config) Dwell() time.Duration {
	return time.Duration(c.Target.DwellSeconds) * time.Second
}

// Pause returns the delay between visits in a batch.
func (c *Config) Pause() time.Duration {
	return time.Duration(c.Batch.PauseMS) * time.Millisecond
}

// Validate reports configuration that would make a batch impossible to run.
func (c *Config) Validate() error {
	if c.Target.URL == "" {
		return ErrNoTarget
	}
	if c.Target.DwellSeconds < 0 {
		return fmt.Errorf("target.dwell_seconds must not be negative, got %d", c.Target.DwellSeconds)
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be positive, got %d", c.Batch.Size)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// ApplyEnv overrides file settings from the environment. PORT wins over
// server.port; VISITBATCH_TARGET_URL wins over target.url.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := getenv("VISITBATCH_TARGET_URL"); v != "" {
		c.Target.URL = v
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// HistoryPath returns the SQLite path, falling back to the cache dir.
func (c *Config) HistoryPath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path. Keys missing from the file keep their
// default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
