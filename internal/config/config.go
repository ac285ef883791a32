package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultPageSize bounds the message page fetched on conversation join.
const DefaultPageSize = 30

// Config represents ~/.convosync/config.toml.
type Config struct {
	// APIBaseURL is the surrounding service handling login, tokens and
	// the schedule.
	APIBaseURL string `toml:"api_base_url"`

	// Identity is the local chat user.
	Identity string `toml:"identity"`

	// DisplayName is announced per endpoint session; the endpoint's
	// schedule name wins when set.
	DisplayName string `toml:"display_name"`

	PageSize int `toml:"page_size"`

	// MetricsAddr serves Prometheus metrics when non-empty,
	// e.g. "127.0.0.1:9188".
	MetricsAddr string `toml:"metrics_addr"`

	// CountCursorless counts chat participants who never read anything
	// toward "delivered" in message status tallies.
	CountCursorless bool `toml:"count_cursorless"`
}

// Load reads config from the given path, then applies CONVOSYNC_*
// environment overrides. A .env file in the working directory is honored
// for development. Returns a usable config even when the file is
// missing.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	cfg.APIBaseURL = getEnv("CONVOSYNC_API_BASE_URL", cfg.APIBaseURL)
	cfg.Identity = getEnv("CONVOSYNC_IDENTITY", cfg.Identity)
	cfg.DisplayName = getEnv("CONVOSYNC_DISPLAY_NAME", cfg.DisplayName)
	cfg.MetricsAddr = getEnv("CONVOSYNC_METRICS_ADDR", cfg.MetricsAddr)
	if v := os.Getenv("CONVOSYNC_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PageSize = n
		}
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
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

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
