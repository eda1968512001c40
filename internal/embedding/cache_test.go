package embedding

import (
	"context"
	"sync/atomic"
	"testing"
)

// countingEngine wraps MockEngine and counts backend calls.
type countingEngine struct {
	*MockEngine
	calls atomic.Int64
}

func (c *countingEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.MockEngine.Embed(ctx, text)
}

func TestCachedEngineHit(t *testing.T) {
	inner := &countingEngine{MockEngine: NewMockEngine(32)}
	cached, err := NewCachedEngine(inner, 128)
	if err != nil {
		t.Fatalf("NewCachedEngine failed: %v", err)
	}
	defer cached.Close()
	ctx := context.Background()

	first, err := cached.Embed(ctx, "repeated text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	// Ristretto applies writes asynchronously
	cached.Wait()

	second, err := cached.Embed(ctx, "repeated text")
	if err != nil {
		t.Fatalf("Second Embed failed: %v", err)
	}

	if inner.calls.Load() != 1 {
		t.Errorf("Expected 1 backend call, got %d", inner.calls.Load())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("Cached vector differs from original")
		}
	}
}

func TestCachedEngineMissOnDifferentText(t *testing.T) {
	inner := &countingEngine{MockEngine: NewMockEngine(32)}
	cached, err := NewCachedEngine(inner, 128)
	if err != nil {
		t.Fatal(err)
	}
	defer cached.Close()
	ctx := context.Background()

	if _, err := cached.Embed(ctx, "text a"); err != nil {
		t.Fatal(err)
	}
	cached.Wait()
	if _, err := cached.Embed(ctx, "text b"); err != nil {
		t.Fatal(err)
	}

	if inner.calls.Load() != 2 {
		t.Errorf("Expected 2 backend calls for distinct texts, got %d", inner.calls.Load())
	}
}

func TestCachedEngineBatchPreservesOrder(t *testing.T) {
	inner := &countingEngine{MockEngine: NewMockEngine(32)}
	cached, err := NewCachedEngine(inner, 128)
	if err != nil {
		t.Fatal(err)
	}
	defer cached.Close()
	ctx := context.Background()

	texts := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	vecs, err := cached.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("Expected %d vectors, got %d", len(texts), len(vecs))
	}

	for i, text := range texts {
		want, _ := inner.MockEngine.Embed(ctx, text)
		for j := range want {
			if vecs[i][j] != want[j] {
				t.Fatalf("Vector %d is not the embedding of %q", i, text)
			}
		}
	}
}

func TestCachedEngineMetadata(t *testing.T) {
	inner := NewMockEngine(48)
	cached, err := NewCachedEngine(inner, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer cached.Close()

	if cached.Dimensions() != 48 {
		t.Errorf("Expected inner dimensions 48, got %d", cached.Dimensions())
	}
	if cached.Name() != "mock+cache" {
		t.Errorf("Unexpected name: %q", cached.Name())
	}
}

func TestNewEngineFactory(t *testing.T) {
	engine, err := NewEngine(Config{Provider: "mock", Dimensions: 16})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if engine.Dimensions() != 16 {
		t.Errorf("Expected 16 dimensions, got %d", engine.Dimensions())
	}

	if _, err := NewEngine(Config{Provider: "carrier-pigeon"}); err == nil {
		t.Error("Expected error for unknown provider")
	}

	cached, err := NewEngine(Config{Provider: "mock", Dimensions: 16, CacheEntries: 64})
	if err != nil {
		t.Fatal(err)
	}
	if cached.Name() != "mock+cache" {
		t.Errorf("Expected cached engine, got %q", cached.Name())
	}
	if c, ok := cached.(*CachedEngine); ok {
		c.Close()
	}
}
