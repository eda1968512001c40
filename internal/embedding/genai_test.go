package embedding

import (
	"testing"
)

func TestNormalizeTaskType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SEMANTIC_SIMILARITY", "SEMANTIC_SIMILARITY"},
		{"RETRIEVAL_DOCUMENT", "RETRIEVAL_DOCUMENT"},
		{"FACT_VERIFICATION", "FACT_VERIFICATION"},
		{"", "SEMANTIC_SIMILARITY"},
		{"semantic_similarity", "SEMANTIC_SIMILARITY"}, // case sensitive
		{"CARRIER_PIGEON", "SEMANTIC_SIMILARITY"},
	}
	for _, tt := range tests {
		if got := normalizeTaskType(tt.in); got != tt.want {
			t.Errorf("normalizeTaskType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewGenAIEngineRequiresKey(t *testing.T) {
	if _, err := NewGenAIEngine("", "gemini-embedding-001", ""); err == nil {
		t.Error("Expected error for missing API key")
	}
}
