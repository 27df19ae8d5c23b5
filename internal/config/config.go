package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the global ~/.trill/config.toml.
type Config struct {
	APIBaseURL        string `toml:"api_base_url"`
	WSURL             string `toml:"ws_url"`
	MessagesPageLimit int    `toml:"messages_page_limit"`
	ChatsPageLimit    int    `toml:"chats_page_limit"`
	DefaultProfile    string `toml:"default_profile"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIBaseURL:        "http://localhost:8000",
		WSURL:             "ws://localhost:8000",
		MessagesPageLimit: 20,
		ChatsPageLimit:    30,
	}
}

// StreamURL returns the full WebSocket endpoint. WSURL is the server base;
// the chat stream lives at /ws/chat under it.
func (c *Config) StreamURL() string {
	return strings.TrimRight(c.WSURL, "/") + "/ws/chat"
}

// Load reads config from the given path, layered over defaults.
// Returns an error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault reads config from the given path, falling back to defaults
// when the file does not exist. A malformed file is still an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables on top of cfg. A .env file in the
// working directory is honored if present. Recognized variables:
// TRILL_API_URL, TRILL_WS_URL, TRILL_MESSAGES_LIMIT, TRILL_CHATS_LIMIT.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("TRILL_API_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("TRILL_WS_URL"); v != "" {
		c.WSURL = v
	}
	if v := os.Getenv("TRILL_MESSAGES_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MessagesPageLimit = n
		}
	}
	if v := os.Getenv("TRILL_CHATS_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.ChatsPageLimit = n
		}
	}
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
