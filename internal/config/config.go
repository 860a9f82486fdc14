// Package config loads the engine-level configuration file (§6): worker
// count, cache directories, remote cache credentials, and log
// level/format, merged with the layered precedence defaults → file →
// environment → explicit override.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

const (
	// FileName is the config file read from the home directory by default.
	FileName = "config.toml"
	// HomeDirEnv overrides ~/.forge for testing and CI.
	HomeDirEnv = "FORGE_HOME"
	// ConfigPathEnv names an explicit config file path, taking precedence
	// over HomeDirEnv/FileName.
	ConfigPathEnv = "FORGE_CONFIG"
)

// FileConfig is the raw `~/.forge/config.toml` structure.
type FileConfig struct {
	Workers             int    `toml:"workers"`
	CacheDir            string `toml:"cache-dir"`
	RemoteCacheEndpoint string `toml:"remote-cache-endpoint"`
	RemoteAccessKeyRef  string `toml:"remote-access-key-ref"`
	LogLevel            string `toml:"log-level"`
	LogFormat           string `toml:"log-format"`
}

// Config is the resolved, ready-to-use engine configuration.
type Config struct {
	Workers             int
	CacheDir            string
	RemoteCacheEndpoint string
	RemoteAccessKey     string
	LogLevel            string
	LogFormat           string
}

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "console"
)

// defaults returns the hardcoded baseline every other layer overrides.
func defaults() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Workers:   0, // 0 means runtime.NumCPU() at the scheduler
		CacheDir:  filepath.Join(home, ".forge", "cache"),
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

// Dir returns the forge home directory: $FORGE_HOME if set, else ~/.forge.
func Dir() (string, error) {
	if override := os.Getenv(HomeDirEnv); override != "" {
		return filepath.Clean(override), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".forge"), nil
}

// Path returns the config file path: $FORGE_CONFIG if set, else <Dir>/config.toml.
func Path() (string, error) {
	if override := os.Getenv(ConfigPathEnv); override != "" {
		return override, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Override carries explicit CLI-flag values; a zero value means "not set",
// and is never applied over a lower layer.
type Override struct {
	Workers             *int
	CacheDir            *string
	RemoteCacheEndpoint *string
	LogLevel            *string
}

// Load resolves the engine configuration: defaults, then the config file
// (if present — a missing file is not an error), then environment
// variables, then override.
func Load(override *Override) (*Config, error) {
	c := defaults()

	path, err := Path()
	if err != nil {
		return nil, err
	}
	if err := applyFile(c, path); err != nil {
		return nil, err
	}
	applyEnv(c)
	if override != nil {
		applyOverride(c, override)
	}
	return c, nil
}

func applyFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var fc FileConfig
	if _, err := toml.Decode(string(data), &fc); err != nil {
		return err
	}

	if fc.Workers > 0 {
		c.Workers = fc.Workers
	}
	if fc.CacheDir != "" {
		c.CacheDir = fc.CacheDir
	}
	if fc.RemoteCacheEndpoint != "" {
		c.RemoteCacheEndpoint = fc.RemoteCacheEndpoint
	}
	if fc.RemoteAccessKeyRef != "" {
		c.RemoteAccessKey = os.Getenv(fc.RemoteAccessKeyRef)
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		c.LogFormat = fc.LogFormat
	}
	return nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("FORGE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers = n
		}
	}
	if v := os.Getenv("FORGE_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("FORGE_REMOTE_CACHE_ENDPOINT"); v != "" {
		c.RemoteCacheEndpoint = v
	}
	if v := os.Getenv("FORGE_REMOTE_CACHE_ACCESS_KEY"); v != "" {
		c.RemoteAccessKey = v
	}
	if v := os.Getenv("FORGE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func applyOverride(c *Config, o *Override) {
	if o.Workers != nil && *o.Workers > 0 {
		c.Workers = *o.Workers
	}
	if o.CacheDir != nil && *o.CacheDir != "" {
		c.CacheDir = *o.CacheDir
	}
	if o.RemoteCacheEndpoint != nil && *o.RemoteCacheEndpoint != "" {
		c.RemoteCacheEndpoint = *o.RemoteCacheEndpoint
	}
	if o.LogLevel != nil && *o.LogLevel != "" {
		c.LogLevel = *o.LogLevel
	}
}
