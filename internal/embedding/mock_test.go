package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockEngineDeterministic(t *testing.T) {
	engine := NewMockEngine(64)
	ctx := context.Background()

	a, err := engine.Embed(ctx, "the same text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := engine.Embed(ctx, "the same text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(a) != 64 {
		t.Fatalf("Expected 64 dimensions, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Same text produced different vectors at index %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestMockEngineDistinctTexts(t *testing.T) {
	engine := NewMockEngine(64)
	ctx := context.Background()

	a, _ := engine.Embed(ctx, "first text")
	b, _ := engine.Embed(ctx, "second text")

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Different texts produced identical vectors")
	}
}

func TestMockEngineUnitNorm(t *testing.T) {
	engine := NewMockEngine(128)

	vec, err := engine.Embed(context.Background(), "normalize me")
	if err != nil {
		t.Fatal(err)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-3 {
		t.Errorf("Expected unit vector, got norm %v", math.Sqrt(norm))
	}
}

func TestMockEngineDefaults(t *testing.T) {
	engine := NewMockEngine(0)
	if engine.Dimensions() != 384 {
		t.Errorf("Expected default 384 dimensions, got %d", engine.Dimensions())
	}
	if engine.Name() != "mock" {
		t.Errorf("Unexpected name: %q", engine.Name())
	}
}

func TestMockEngineBatch(t *testing.T) {
	engine := NewMockEngine(32)

	texts := []string{"one", "two", "three"}
	vecs, err := engine.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("Expected 3 vectors, got %d", len(vecs))
	}

	// Batch output matches single embeds, in order
	for i, text := range texts {
		single, _ := engine.Embed(context.Background(), text)
		for j := range single {
			if vecs[i][j] != single[j] {
				t.Fatalf("Batch vector %d differs from single embed", i)
			}
		}
	}
}

func TestMockEngineHonorsCancellation(t *testing.T) {
	engine := NewMockEngine(32)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Embed(ctx, "text"); err == nil {
		t.Error("Expected error from cancelled context")
	}
}
