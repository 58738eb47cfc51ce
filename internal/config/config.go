// Package config loads and saves chatctl's configuration.
//
// Precedence, highest first:
//  1. command-line flags (applied by cmd)
//  2. environment variables, optionally from a .env file
//  3. the config file (--config, default ~/.config/chatctl/config.yaml)
//  4. DefaultConfig
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/logging"
)

// ProviderConfig configures one LLM provider for offline mode.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// APIConfig points at the chat-sessions server.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// OfflineConfig enables the serverless mode: a local SQLite store and a
// direct LLM provider.
type OfflineConfig struct {
	Enabled      bool                       `yaml:"enabled"`
	DBPath       string                     `yaml:"db_path"`
	Provider     string                     `yaml:"provider"`
	Model        string                     `yaml:"model"`
	SystemPrompt string                     `yaml:"system_prompt"`
	Providers    map[string]*ProviderConfig `yaml:"providers"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives logs in TUI mode. Empty means the default state file.
	File string `yaml:"file"`
}

// Config is chatctl's complete configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Offline OfflineConfig `yaml:"offline"`
	Log     LogConfig     `yaml:"log"`
}

// envOverrides lists the environment variables read on top of the file.
type envOverrides struct {
	APIURL          string        `env:"CHATCTL_API_URL"`
	Token           string        `env:"CHATCTL_TOKEN"`
	Timeout         time.Duration `env:"CHATCTL_TIMEOUT"`
	Offline         string        `env:"CHATCTL_OFFLINE"`
	LogLevel        string        `env:"CHATCTL_LOG_LEVEL"`
	LogFormat       string        `env:"CHATCTL_LOG_FORMAT"`
	Provider        string        `env:"CHATCTL_PROVIDER"`
	Model           string        `env:"CHATCTL_MODEL"`
	LLMAPIKey       string        `env:"LLM_API_KEY"`
	LLMBaseURL      string        `env:"LLM_BASE_URL"`
	AnthropicAPIKey string        `env:"ANTHROPIC_API_KEY"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: 60 * time.Second,
		},
		Offline: OfflineConfig{
			Provider:  "openai",
			Providers: make(map[string]*ProviderConfig),
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// DefaultPath returns ~/.config/chatctl/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "chatctl", "config.yaml"), nil
}

// Load reads the config file at configPath (or the default path when
// empty) and applies environment overrides. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		if p, err := DefaultPath(); err == nil {
			configPath = p
		}
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	if cfg.Offline.Providers == nil {
		cfg.Offline.Providers = make(map[string]*ProviderConfig)
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	var overrides envOverrides
	if err := env.Load(&overrides, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.applyEnv(&overrides); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(o *envOverrides) error {
	if o.APIURL != "" {
		c.API.BaseURL = o.APIURL
	}
	if o.Token != "" {
		c.API.Token = o.Token
	}
	if o.Timeout != 0 {
		c.API.Timeout = o.Timeout
	}
	if o.Offline != "" {
		enabled, err := strconv.ParseBool(o.Offline)
		if err != nil {
			return fmt.Errorf("CHATCTL_OFFLINE: %w", err)
		}
		c.Offline.Enabled = enabled
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Log.Format = o.LogFormat
	}

	// Provider first: LLM_* apply to the selected provider.
	if o.Provider != "" {
		c.Offline.Provider = o.Provider
	}
	if o.Model != "" {
		c.Offline.Model = o.Model
	}
	if o.LLMAPIKey != "" {
		c.providerEntry(c.Offline.Provider).APIKey = o.LLMAPIKey
	}
	if o.LLMBaseURL != "" {
		c.providerEntry(c.Offline.Provider).BaseURL = o.LLMBaseURL
	}
	if o.AnthropicAPIKey != "" {
		c.providerEntry("anthropic").APIKey = o.AnthropicAPIKey
	}
	return nil
}

func (c *Config) providerEntry(name string) *ProviderConfig {
	if c.Offline.Providers == nil {
		c.Offline.Providers = make(map[string]*ProviderConfig)
	}
	pc, ok := c.Offline.Providers[name]
	if !ok || pc == nil {
		pc = &ProviderConfig{}
		c.Offline.Providers[name] = pc
	}
	return pc
}

// GetProviderConfig returns the named provider's config, or an empty one.
func (c *Config) GetProviderConfig(name string) *ProviderConfig {
	if pc, ok := c.Offline.Providers[name]; ok && pc != nil {
		return pc
	}
	return &ProviderConfig{}
}

// Validate checks the settings needed by the selected mode.
func (c *Config) Validate() error {
	if c.Offline.Enabled {
		if c.Offline.Provider == "" {
			return errors.New("offline.provider is required in offline mode")
		}
	} else {
		if c.API.BaseURL == "" {
			return errors.New("api.base_url is required")
		}
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("api.base_url %q must be an http(s) URL", c.API.BaseURL)
		}
		if c.API.Timeout <= 0 {
			return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Save writes cfg to path, creating the directory. The file holds
// credentials and is written with mode 0600.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
