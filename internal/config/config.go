// Package config loads the YAML configuration file, applies environment
// overrides and writes the default file on first run.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"plexpresence/internal/httputil"
)

const (
	DefaultServerURL       = "http://localhost:32400"
	PlaceholderToken       = "YOUR_PLEX_TOKEN_HERE"
	DefaultPollingInterval = 15
	appDir                 = "plexpresence"
	fileName               = "config.yaml"
)

var (
	ErrConfigInvalid = errors.New("invalid configuration")
	// ErrConfigCreated means no file existed and a default one was written.
	// The user has to edit it before the daemon can run.
	ErrConfigCreated = errors.New("default configuration created")
)

type Config struct {
	ServerURL           string `yaml:"server_url"`
	Token               string `yaml:"token"`
	PollingIntervalSecs int    `yaml:"polling_interval_secs"`
	LogLevel            string `yaml:"log_level,omitempty"`
	DiagnosticsAddr     string `yaml:"diagnostics_addr,omitempty"`
	DiscordClientID     string `yaml:"discord_client_id,omitempty"`
	// OMDbAPIKey enables poster artwork for titles Plex tags with an IMDb id.
	OMDbAPIKey          string `yaml:"omdb_api_key,omitempty"`
}

func Default() Config {
	return Config{
		ServerURL:           DefaultServerURL,
		Token:               PlaceholderToken,
		PollingIntervalSecs: DefaultPollingInterval,
		LogLevel:            "info",
	}
}

func (c Config) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalSecs) * time.Second
}

// Path returns <user config dir>/plexpresence/config.yaml, falling back to
// the working directory when no config dir can be determined.
func Path() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, appDir, fileName)
}

// Load reads path, then applies .env and environment overrides. A missing
// file is replaced by the defaults and ErrConfigCreated is returned.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := readFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := Save(path, Default()); err != nil {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("%w at %s: edit it with your Plex server URL and token", ErrConfigCreated, path)
	}
	if err != nil {
		return Config{}, err
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parsing %s: %v", ErrConfigInvalid, path, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PLEX_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("PLEX_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("PLEX_POLLING_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PLEX_POLLING_INTERVAL=%q is not a number", ErrConfigInvalid, v)
		}
		cfg.PollingIntervalSecs = n
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DIAGNOSTICS_ADDR"); v != "" {
		cfg.DiagnosticsAddr = v
	}
	if v := os.Getenv("DISCORD_CLIENT_ID"); v != "" {
		cfg.DiscordClientID = v
	}
	if v := os.Getenv("OMDB_API_KEY"); v != "" {
		cfg.OMDbAPIKey = v
	}
	return nil
}

func Validate(cfg Config) error {
	if err := httputil.ValidateServerURL(cfg.ServerURL); err != nil {
		return fmt.Errorf("%w: server_url: %v", ErrConfigInvalid, err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" || token == PlaceholderToken {
		return fmt.Errorf("%w: token is not set", ErrConfigInvalid)
	}
	if cfg.PollingIntervalSecs < 1 {
		return fmt.Errorf("%w: polling_interval_secs must be at least 1", ErrConfigInvalid)
	}
	return nil
}

// Save writes cfg to path atomically, creating the parent directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer pending.Cleanup() //nolint:errcheck

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace config file: %w", err)
	}
	return nil
}
