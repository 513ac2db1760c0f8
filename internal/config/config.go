// Package config loads the service configuration from a YAML file with
// environment variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all tunables for the server and capture pipeline.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`

	Capture struct {
		MaxImages   int `yaml:"max_images"`
		TargetBytes int `yaml:"target_bytes"`
	} `yaml:"capture"`

	Analysis struct {
		Provider string  `yaml:"provider"`
		Model    string  `yaml:"model"`
		Endpoint string  `yaml:"endpoint"`
		Temp     float64 `yaml:"temperature"`
	} `yaml:"analysis"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8888"
	cfg.Storage.DBPath = "eatzone.db"
	cfg.Capture.MaxImages = 5
	cfg.Capture.TargetBytes = 1 << 20
	cfg.Analysis.Provider = "ollama"
	cfg.Analysis.Temp = 0.2
	return cfg
}

// Load reads path (if non-empty) on top of defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("EATZONE_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("ANALYSIS_PROVIDER"); v != "" {
		cfg.Analysis.Provider = v
	}
	if v := os.Getenv("ANALYSIS_MODEL"); v != "" {
		cfg.Analysis.Model = v
	}
	if v := os.Getenv("ANALYSIS_ENDPOINT"); v != "" {
		cfg.Analysis.Endpoint = v
	}
	if v := os.Getenv("EATZONE_MAX_IMAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Capture.MaxImages = n
		}
	}
}

func (c *Config) validate() error {
	if c.Capture.MaxImages < 1 {
		return fmt.Errorf("capture.max_images must be at least 1, got %d", c.Capture.MaxImages)
	}
	if c.Capture.TargetBytes < 1 {
		return fmt.Errorf("capture.target_bytes must be positive, got %d", c.Capture.TargetBytes)
	}
	switch c.Analysis.Provider {
	case "ollama", "openai", "gemini":
	default:
		return fmt.Errorf("unknown analysis provider %q", c.Analysis.Provider)
	}
	return nil
}
