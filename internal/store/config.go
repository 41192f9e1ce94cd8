package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type GlobalConfig struct {
	// APIURL is the backend origin. Empty means same-origin requests (relative /api/... paths).
	APIURL string `json:"apiUrl,omitempty"`

	// Headers are added to every backend request (e.g. a tunnel relay's bypass header).
	Headers map[string]string `json:"headers,omitempty"`

	// StoragePrefix overrides the per-user state key prefix.
	StoragePrefix string `json:"storagePrefix,omitempty"`

	// RequestTimeout is a Go duration ("30s"). Empty means the client default.
	RequestTimeout string `json:"requestTimeout,omitempty"`

	// DataDir holds local.sqlite. Defaults to <config dir>/data.
	DataDir string `json:"dataDir,omitempty"`
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.dayplan).
	if v := strings.TrimSpace(os.Getenv("DAYPLAN_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".dayplan"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultDataDir is where local.sqlite lives when neither flag, env nor config set one.
func DefaultDataDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

func LoadConfig() (*GlobalConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}
	var cfg GlobalConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func SaveConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Keep a copy of the previous config; ignore errors so normal usage is never blocked.
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = atomicWriteFile(dir, "config.json.bak.*.tmp", path+".bak", prev, 0o644)
	}

	// Unique temp name + rename so concurrent CLI processes never observe a torn file.
	return atomicWriteFile(dir, "config.json.*.tmp", path, b, 0o600)
}

// Timeout parses RequestTimeout; zero means "use the default".
func (c *GlobalConfig) Timeout() (time.Duration, error) {
	if c == nil || strings.TrimSpace(c.RequestTimeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(c.RequestTimeout))
	if err != nil {
		return 0, fmt.Errorf("requestTimeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("requestTimeout: negative duration %s", d)
	}
	return d, nil
}

// Set updates one config field by its JSON name. Header entries use "headers.<name>";
// an empty value deletes the entry.
func (c *GlobalConfig) Set(key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	switch {
	case key == "apiUrl":
		c.APIURL = value
	case key == "storagePrefix":
		c.StoragePrefix = value
	case key == "dataDir":
		c.DataDir = value
	case key == "requestTimeout":
		if value != "" {
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("requestTimeout: %w", err)
			}
		}
		c.RequestTimeout = value
	case strings.HasPrefix(key, "headers."):
		name := strings.TrimSpace(strings.TrimPrefix(key, "headers."))
		if name == "" {
			return errors.New("missing header name")
		}
		if value == "" {
			delete(c.Headers, name)
			return nil
		}
		if c.Headers == nil {
			c.Headers = map[string]string{}
		}
		c.Headers[name] = value
	default:
		return fmt.Errorf("unknown config key: %s (valid: %s)", key, strings.Join(ConfigKeys(), ", "))
	}
	return nil
}

func ConfigKeys() []string {
	keys := []string{"apiUrl", "storagePrefix", "dataDir", "requestTimeout", "headers.<name>"}
	sort.Strings(keys)
	return keys
}
