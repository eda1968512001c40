package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEngine generates deterministic embeddings from a text hash. It exists
// for offline development and tests: the same text always produces the same
// unit vector, and different texts are effectively orthogonal.
type MockEngine struct {
	dimensions int
}

// NewMockEngine creates a mock engine with the given dimensionality
// (default 384).
func NewMockEngine(dimensions int) *MockEngine {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEngine{dimensions: dimensions}
}

// Embed creates a deterministic embedding from the text hash.
func (m *MockEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	for i := 0; i < m.dimensions; i++ {
		// Linear congruential step seeded by the hash
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(vec), nil
}

// EmbedBatch embeds each text independently.
func (m *MockEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

// Dimensions returns the embedding size.
func (m *MockEngine) Dimensions() int {
	return m.dimensions
}

// Name returns the engine name.
func (m *MockEngine) Name() string {
	return "mock"
}

// normalize converts the vector to unit length.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
