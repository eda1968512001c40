package mnemos

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mnemos/internal/consolidation"
	"mnemos/internal/memory"
)

// scriptedExtractor returns fixed candidates regardless of input.
type scriptedExtractor struct {
	candidates []consolidation.Candidate
}

func (s *scriptedExtractor) Extract(ctx context.Context, messages []memory.Message) ([]consolidation.Candidate, error) {
	return s.candidates, nil
}

type concatMerger struct{}

func (concatMerger) Merge(ctx context.Context, existing, incoming string) (string, error) {
	return existing + " " + incoming, nil
}

func newTestSystem(t *testing.T, ex consolidation.Extractor) *System {
	t.Helper()
	ws := t.TempDir()

	cfgYAML := `
database:
  path: ":memory:"
embedding:
  provider: mock
  dimensions: 32
  cache_entries: 64
consolidation:
  min_confidence: 0.7
  min_content_length: 20
  merge_threshold: 0.8
  top_k: 3
  collaborator_timeout: 5s
`
	if err := os.MkdirAll(filepath.Join(ws, ".mnemos"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, ".mnemos", "config.yaml"), []byte(cfgYAML), 0644); err != nil {
		t.Fatal(err)
	}

	opts := Options{}
	if ex != nil {
		opts.Extractor = ex
		opts.Merger = concatMerger{}
	}
	sys, err := Open(ws, opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { sys.Close() })
	return sys
}

func TestTaskRoundtrip(t *testing.T) {
	sys := newTestSystem(t, nil)
	ctx := context.Background()

	st, err := sys.Tasks().StartTask(ctx, "review the deployment scripts", "u1", "")
	if err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}

	if err := sys.Tasks().AppendMessage(ctx, st, "user", "start with the rollback path"); err != nil {
		t.Fatal(err)
	}
	if err := sys.Tasks().UpdateWorkspace(ctx, st, memory.FieldUnderstanding, "rollback is untested"); err != nil {
		t.Fatal(err)
	}

	// Simulated restart: resume purely from persisted state
	resumed, err := sys.Tasks().ContinueTask(ctx, st.TaskID, "u1")
	if err != nil {
		t.Fatalf("ContinueTask failed: %v", err)
	}
	if resumed.Workspace.Understanding != "rollback is untested" {
		t.Errorf("Workspace state lost: %q", resumed.Workspace.Understanding)
	}
	if len(resumed.Conversation.Messages) != 1 {
		t.Errorf("Conversation lost: %d messages", len(resumed.Conversation.Messages))
	}

	if err := sys.Tasks().CompleteTask(ctx, resumed); err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if _, err := sys.Tasks().ContinueTask(ctx, st.TaskID, "u1"); !memory.IsNotFound(err) {
		t.Errorf("Expected NotFoundError after completion, got %v", err)
	}
}

func TestConsolidationAcrossTasks(t *testing.T) {
	ex := &scriptedExtractor{candidates: []consolidation.Candidate{
		{Topic: "deploys", Content: "rollback requires the previous artifact to be retained", Confidence: 0.9},
		{Topic: "general", Content: "something generic that the gate should throw away", Confidence: 0.9},
	}}
	sys := newTestSystem(t, ex)
	ctx := context.Background()

	st, err := sys.Tasks().StartTask(ctx, "fix the deploy", "u1", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := sys.Tasks().AppendMessage(ctx, st, "user", "the rollback failed yesterday"); err != nil {
		t.Fatal(err)
	}
	conversation := st.Conversation
	if err := sys.Tasks().CompleteTask(ctx, st); err != nil {
		t.Fatal(err)
	}

	report, err := sys.Consolidate(ctx, conversation)
	if err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}
	if report.Created != 1 || report.Rejected != 1 {
		t.Errorf("Unexpected report: %+v", report)
	}

	// A later task sees the accumulated knowledge in its context
	next, err := sys.Tasks().StartTask(ctx, "deploy again", "u1", "")
	if err != nil {
		t.Fatal(err)
	}
	out, err := sys.Context(ctx, next, "working directory: /srv", []Tool{{Name: "shell"}})
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	if !strings.Contains(out, "rollback requires the previous artifact") {
		t.Errorf("Knowledge missing from context:\n%s", out)
	}
	if !strings.Contains(out, "deploy again") {
		t.Errorf("Workspace objective missing from context:\n%s", out)
	}
	if !strings.Contains(out, "shell") {
		t.Errorf("Tools missing from context:\n%s", out)
	}
}

func TestEraseUser(t *testing.T) {
	sys := newTestSystem(t, nil)
	ctx := context.Background()

	st, err := sys.Tasks().StartTask(ctx, "private task", "u1", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := sys.Tasks().AppendMessage(ctx, st, "user", "sensitive detail"); err != nil {
		t.Fatal(err)
	}

	if err := sys.EraseUser(ctx, "u1"); err != nil {
		t.Fatalf("EraseUser failed: %v", err)
	}

	stats, err := sys.Stats()
	if err != nil {
		t.Fatal(err)
	}
	for table, count := range stats {
		if count != 0 {
			t.Errorf("Table %s still has %d rows after erasure", table, count)
		}
	}
}

func TestOpenRequiresMergerWithExtractor(t *testing.T) {
	ws := t.TempDir()
	_, err := Open(ws, Options{Extractor: &scriptedExtractor{}})
	if err == nil {
		t.Error("Expected error when extractor is set without a merger")
	}
}
