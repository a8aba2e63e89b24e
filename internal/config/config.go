package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models survival.yml.
type Config struct {
	Generator struct {
		BaseURL            string `yaml:"base_url"`
		Model              string `yaml:"model"`
		APIKeyEnv          string `yaml:"api_key_env"`
		MissionMaxTokens   int    `yaml:"mission_max_tokens"`
		GameplayMaxTokens  int    `yaml:"gameplay_max_tokens"`
		RequestTimeoutSecs int    `yaml:"request_timeout_seconds"`
	} `yaml:"generator"`
	Rounds struct {
		Default int `yaml:"default"`
		Min     int `yaml:"min"`
		Max     int `yaml:"max"`
	} `yaml:"rounds"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecretEnv      string `yaml:"jwt_secret_env"`
		AllowUserIDHeader bool   `yaml:"allow_user_id_header"`
	} `yaml:"auth"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Generator.Model == "" {
		return fmt.Errorf("config.generator.model is required")
	}
	if c.Generator.MissionMaxTokens <= 0 {
		return fmt.Errorf("config.generator.mission_max_tokens must be positive")
	}
	if c.Generator.GameplayMaxTokens <= 0 {
		return fmt.Errorf("config.generator.gameplay_max_tokens must be positive")
	}
	if c.Rounds.Min < 1 {
		return fmt.Errorf("config.rounds.min must be at least 1")
	}
	if c.Rounds.Max < c.Rounds.Min {
		return fmt.Errorf("config.rounds.max must be >= config.rounds.min")
	}
	if c.Rounds.Default < c.Rounds.Min || c.Rounds.Default > c.Rounds.Max {
		return fmt.Errorf("config.rounds.default must lie within [min,max]")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "survival.yml")
}

// APIKey resolves the generator API key from the configured environment variable.
func (c *Config) APIKey() string {
	env := c.Generator.APIKeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	return os.Getenv(env)
}

// JWTSecret resolves the auth secret from the configured environment variable.
func (c *Config) JWTSecret() string {
	env := c.Auth.JWTSecretEnv
	if env == "" {
		env = "SURVIVAL_JWT_SECRET"
	}
	return os.Getenv(env)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML for `survival init`.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `generator:
  base_url: https://api.openai.com/v1
  model: o4-mini-2025-04-16
  api_key_env: OPENAI_API_KEY
  mission_max_tokens: 5000
  gameplay_max_tokens: 1500
  request_timeout_seconds: 120

rounds:
  default: 10
  min: 5
  max: 12

server:
  addr: :8080
  base_path: /v0

auth:
  jwt_secret_env: SURVIVAL_JWT_SECRET
  allow_user_id_header: true
`
