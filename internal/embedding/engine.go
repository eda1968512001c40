// Package embedding provides vector embedding generation for the knowledge
// consolidation pipeline. Supported backends: Ollama (local), Google GenAI
// (cloud), and a deterministic mock for offline use and tests.
package embedding

import (
	"context"
	"fmt"

	"mnemos/internal/logging"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings
	Dimensions() int

	// Name returns the engine name
	Name() string
}

// Config holds embedding engine configuration.
type Config struct {
	// Provider: "ollama", "genai", or "mock"
	Provider string

	OllamaEndpoint string // Default: "http://localhost:11434"
	OllamaModel    string // Default: "embeddinggemma"

	GenAIAPIKey string
	GenAIModel  string // Default: "gemini-embedding-001"
	TaskType    string // GenAI task type, e.g. "SEMANTIC_SIMILARITY"

	// Dimensions is used by the mock provider; real backends report their own.
	Dimensions int

	// CacheEntries > 0 wraps the engine in a ristretto result cache.
	CacheEntries int64
}

// NewEngine creates an embedding engine based on configuration. When
// CacheEntries is set the engine is wrapped in a result cache.
func NewEngine(cfg Config) (Engine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewEngine")
	defer timer.Stop()

	logging.Embedding("Creating embedding engine with provider=%s", cfg.Provider)

	var engine Engine
	var err error

	switch cfg.Provider {
	case "ollama":
		engine, err = NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel)
	case "genai":
		engine, err = NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel, cfg.TaskType)
	case "mock":
		engine = NewMockEngine(cfg.Dimensions)
	default:
		err = fmt.Errorf("unsupported embedding provider: %s (use 'ollama', 'genai' or 'mock')", cfg.Provider)
	}
	if err != nil {
		logging.Get(logging.CategoryEmbedding).Error("Failed to create embedding engine: %v", err)
		return nil, err
	}

	if cfg.CacheEntries > 0 {
		engine, err = NewCachedEngine(engine, cfg.CacheEntries)
		if err != nil {
			return nil, err
		}
	}

	logging.Embedding("Embedding engine ready: name=%s dimensions=%d", engine.Name(), engine.Dimensions())
	return engine, nil
}
