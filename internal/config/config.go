package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.parley/config.toml.
type Config struct {
	DefaultProfile string         `toml:"default_profile"`
	Server         ServerConfig   `toml:"server"`
	Realtime       RealtimeConfig `toml:"realtime"`
}

// ServerConfig locates the chat server's HTTP API.
type ServerConfig struct {
	BaseURL     string   `toml:"base_url"`
	HTTPTimeout Duration `toml:"http_timeout"`
}

// RealtimeConfig tunes the realtime channel. Transports are tried in order;
// each is either a path on the server or a full ws:// or wss:// URL.
type RealtimeConfig struct {
	Transports           []string `toml:"transports"`
	ConnectTimeout       Duration `toml:"connect_timeout"`
	MaxReconnectAttempts int      `toml:"max_reconnect_attempts"`
	ReconnectBaseDelay   Duration `toml:"reconnect_base_delay"`
	ReconnectMaxDelay    Duration `toml:"reconnect_max_delay"`
}

// Duration is a time.Duration written as a string such as "8s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:     "http://localhost:3000/api",
			HTTPTimeout: Duration{30 * time.Second},
		},
		Realtime: RealtimeConfig{
			Transports:           []string{"/ws", "/socket"},
			ConnectTimeout:       Duration{8 * time.Second},
			MaxReconnectAttempts: 5,
			ReconnectBaseDelay:   Duration{1 * time.Second},
			ReconnectMaxDelay:    Duration{30 * time.Second},
		},
	}
}

// Load reads config from the given path. Keys absent from the file keep
// their defaults. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
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

// RealtimeURLs expands the configured transports into websocket URLs
// relative to the server's origin.
func (c *Config) RealtimeURLs() ([]string, error) {
	base, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base_url: %w", err)
	}
	switch base.Scheme {
	case "http":
		base.Scheme = "ws"
	case "https":
		base.Scheme = "wss"
	default:
		return nil, fmt.Errorf("base_url %q: scheme must be http or https", c.Server.BaseURL)
	}

	urls := make([]string, 0, len(c.Realtime.Transports))
	for _, t := range c.Realtime.Transports {
		if strings.HasPrefix(t, "ws://") || strings.HasPrefix(t, "wss://") {
			urls = append(urls, t)
			continue
		}
		u := url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/" + strings.TrimLeft(t, "/")}
		urls = append(urls, u.String())
	}
	return urls, nil
}
