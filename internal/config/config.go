package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds everything roost reads from config.toml.
type Config struct {
	ControllerURL  string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Retries        int
	RetryBase      time.Duration
	RetryMax       time.Duration
	MaxPollBackoff time.Duration
	OfflineAfter   int
	NotifyTimeout  time.Duration
	CascadeSkipOff bool
	LogLevel       string
	LogFile        string
	MetricsAddr    string
	Theme          string
}

const (
	defaultConfigPath     = "~/.config/roost/config.toml"
	defaultControllerURL  = "http://127.0.0.1:8080"
	defaultPollInterval   = 5 * time.Second
	defaultRequestTimeout = 8 * time.Second
	defaultRetries        = 2
	defaultRetryBase      = 250 * time.Millisecond
	defaultRetryMax       = 4 * time.Second
	defaultMaxPollBackoff = 60 * time.Second
	defaultOfflineAfter   = 2
	defaultNotifyTimeout  = 4 * time.Second
	defaultLogFile        = "~/.local/state/roost/roost.log"
	defaultTheme          = "Slate"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		ControllerURL:  defaultControllerURL,
		PollInterval:   defaultPollInterval,
		RequestTimeout: defaultRequestTimeout,
		Retries:        defaultRetries,
		RetryBase:      defaultRetryBase,
		RetryMax:       defaultRetryMax,
		MaxPollBackoff: defaultMaxPollBackoff,
		OfflineAfter:   defaultOfflineAfter,
		NotifyTimeout:  defaultNotifyTimeout,
		LogFile:        mustExpand(defaultLogFile),
		Theme:          defaultTheme,
	}
}

type fileConfig struct {
	ControllerURL  string `toml:"controller_url"`
	PollInterval   string `toml:"poll_interval"`
	RequestTimeout string `toml:"request_timeout"`
	Retries        *int   `toml:"retries"`
	RetryBase      string `toml:"retry_base"`
	RetryMax       string `toml:"retry_max"`
	MaxPollBackoff string `toml:"max_poll_backoff"`
	OfflineAfter   int    `toml:"offline_after"`
	NotifyTimeout  string `toml:"notify_timeout"`
	CascadeSkipOff bool   `toml:"cascade_skip_off"`
	LogLevel       string `toml:"log_level"`
	LogFile        string `toml:"log_file"`
	MetricsAddr    string `toml:"metrics_addr"`
	Theme          string `toml:"theme"`
}

// Load parses the roost config, falling back to defaults when it is missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.ControllerURL); v != "" {
		cfg.ControllerURL = v
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"poll_interval", raw.PollInterval, &cfg.PollInterval},
		{"request_timeout", raw.RequestTimeout, &cfg.RequestTimeout},
		{"retry_base", raw.RetryBase, &cfg.RetryBase},
		{"retry_max", raw.RetryMax, &cfg.RetryMax},
		{"max_poll_backoff", raw.MaxPollBackoff, &cfg.MaxPollBackoff},
		{"notify_timeout", raw.NotifyTimeout, &cfg.NotifyTimeout},
	}
	for _, d := range durations {
		if err := parseDuration(d.key, d.raw, d.dst); err != nil {
			return Config{}, err
		}
	}
	if raw.Retries != nil {
		cfg.Retries = *raw.Retries
	}
	if raw.OfflineAfter > 0 {
		cfg.OfflineAfter = raw.OfflineAfter
	}
	cfg.CascadeSkipOff = raw.CascadeSkipOff
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	if v := strings.TrimSpace(raw.Theme); v != "" {
		cfg.Theme = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the sync engine cannot run with.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ControllerURL) == "":
		return fmt.Errorf("controller_url is empty")
	case c.PollInterval <= 0:
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	case c.Retries < 0:
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	case c.RetryMax < c.RetryBase:
		return fmt.Errorf("retry_max (%s) is below retry_base (%s)", c.RetryMax, c.RetryBase)
	case c.MaxPollBackoff < c.PollInterval:
		return fmt.Errorf("max_poll_backoff (%s) is below poll_interval (%s)", c.MaxPollBackoff, c.PollInterval)
	}
	return nil
}

func parseDuration(key, raw string, dst *time.Duration) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return fmt.Errorf("parse config: %s: %w", key, err)
	}
	*dst = d
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

// DefaultPath returns the expanded default config location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
