// Package config loads mnemos configuration from .mnemos/config.yaml with
// environment variable overrides. A .env file next to the config is loaded
// first so local development credentials stay out of the shell profile.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all mnemos configuration.
type Config struct {
	// Relational store settings
	Database DatabaseConfig `yaml:"database"`

	// Embedding engine
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Knowledge consolidation pipeline
	Consolidation ConsolidationConfig `yaml:"consolidation"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // ollama, genai, mock

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"`
	TaskType    string `yaml:"task_type"`

	// Expected embedding dimensionality; validated on every knowledge insert.
	Dimensions int `yaml:"dimensions"`

	// Max entries held by the ristretto embedding cache (0 disables caching).
	CacheEntries int64 `yaml:"cache_entries"`
}

// ConsolidationConfig configures the quality gate and merge decision.
type ConsolidationConfig struct {
	MinConfidence       float64 `yaml:"min_confidence"`
	MinContentLength    int     `yaml:"min_content_length"`
	MergeThreshold      float64 `yaml:"merge_threshold"`
	TopK                int     `yaml:"top_k"`
	CollaboratorTimeout string  `yaml:"collaborator_timeout"`
}

// Timeout parses the per-collaborator-call timeout, defaulting to 30s.
func (c ConsolidationConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(c.CollaboratorTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(".mnemos", "memory.db"),
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
			Dimensions:     768,
			CacheEntries:   4096,
		},
		Consolidation: ConsolidationConfig{
			MinConfidence:       0.7,
			MinContentLength:    20,
			MergeThreshold:      0.8,
			TopK:                3,
			CollaboratorTimeout: "30s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given path, falling back to defaults for
// anything unset. A missing file is not an error. Environment variables win
// over file values.
func Load(path string) (*Config, error) {
	// Best-effort .env load; absence is normal.
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MNEMOS_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("MNEMOS_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		cfg.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.Embedding.OllamaModel = v
	}
	if v := os.Getenv("GENAI_API_KEY"); v != "" {
		cfg.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("GENAI_MODEL"); v != "" {
		cfg.Embedding.GenAIModel = v
	}
	if v := os.Getenv("MNEMOS_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("MNEMOS_DEBUG"); v != "" {
		cfg.Logging.DebugMode = v == "1" || v == "true"
	}
}

// Save writes the configuration to the given path, creating the directory.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
