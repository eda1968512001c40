package memory

import (
	"testing"
)

func TestProfileBlobRoundtrip(t *testing.T) {
	p := NewProfile("u1")
	p.SetPreference("editor", "vim")
	p.AddGoal("ship it")
	p.AddExpertise("sqlite")
	p.CommunicationStyle = "terse"

	raw, err := EncodeProfile(p)
	if err != nil {
		t.Fatalf("EncodeProfile failed: %v", err)
	}

	got, err := DecodeProfile("u1", raw)
	if err != nil {
		t.Fatalf("DecodeProfile failed: %v", err)
	}
	if got.Preferences["editor"] != "vim" {
		t.Errorf("Preference lost: %v", got.Preferences)
	}
	if len(got.Goals) != 1 || got.Goals[0] != "ship it" {
		t.Errorf("Goals lost: %v", got.Goals)
	}
	if len(got.Expertise) != 1 || got.Expertise[0] != "sqlite" {
		t.Errorf("Expertise lost: %v", got.Expertise)
	}
	if got.CommunicationStyle != "terse" {
		t.Errorf("CommunicationStyle lost: %q", got.CommunicationStyle)
	}
}

func TestProfileBlobV1Migration(t *testing.T) {
	// v1 stored expertise under "interests"
	raw := []byte(`{"schema_version":1,"interests":["go","sqlite"],"preferences":{"k":"v"}}`)

	p, err := DecodeProfile("u1", raw)
	if err != nil {
		t.Fatalf("DecodeProfile failed on v1 payload: %v", err)
	}
	if len(p.Expertise) != 2 || p.Expertise[0] != "go" {
		t.Errorf("v1 interests not migrated to expertise: %v", p.Expertise)
	}
	if p.Preferences["k"] != "v" {
		t.Errorf("Preferences lost in migration: %v", p.Preferences)
	}
}

func TestProfileBlobCorrupt(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte(""),
		[]byte("{"),
		[]byte("not json at all"),
	}
	for _, raw := range cases {
		if _, err := DecodeProfile("u1", raw); !IsCorruptState(err) {
			t.Errorf("Expected CorruptStateError for %q, got %v", raw, err)
		}
	}
}

func TestConversationBlobRoundtrip(t *testing.T) {
	c := NewConversation("c1", "u1")
	c.Append("user", "hello")
	c.Append("assistant", "hi")

	raw, err := EncodeConversation(c)
	if err != nil {
		t.Fatalf("EncodeConversation failed: %v", err)
	}
	got, err := DecodeConversation("c1", "u1", raw)
	if err != nil {
		t.Fatalf("DecodeConversation failed: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Content != "hello" || got.Messages[1].Role != "assistant" {
		t.Errorf("Messages corrupted: %+v", got.Messages)
	}
}

func TestWorkspaceBlobRoundtrip(t *testing.T) {
	w := NewWorkspace("t1", "u1", "c1")
	w.Objective = "obj"
	w.Understanding = "und"
	w.Approach = "app"
	w.Discoveries = "disc"

	raw, err := EncodeWorkspace(w)
	if err != nil {
		t.Fatalf("EncodeWorkspace failed: %v", err)
	}
	got, err := DecodeWorkspace("t1", "u1", raw)
	if err != nil {
		t.Fatalf("DecodeWorkspace failed: %v", err)
	}
	if got.ConversationID != "c1" {
		t.Errorf("ConversationID lost: %q", got.ConversationID)
	}
	if got.Objective != "obj" || got.Understanding != "und" || got.Approach != "app" || got.Discoveries != "disc" {
		t.Errorf("Fields lost: %+v", got)
	}
}

func TestWorkspaceBlobV1Migration(t *testing.T) {
	// v1 stored a single free-text notes field
	raw := []byte(`{"schema_version":1,"conversation_id":"c1","notes":"old scratch text"}`)

	w, err := DecodeWorkspace("t1", "u1", raw)
	if err != nil {
		t.Fatalf("DecodeWorkspace failed on v1 payload: %v", err)
	}
	if w.Discoveries != "old scratch text" {
		t.Errorf("v1 notes not migrated to discoveries: %q", w.Discoveries)
	}
}

func TestWorkspaceBlobCorrupt(t *testing.T) {
	if _, err := DecodeWorkspace("t1", "u1", []byte("}")); !IsCorruptState(err) {
		t.Errorf("Expected CorruptStateError, got %v", err)
	}
	if _, err := DecodeConversation("c1", "u1", []byte("x")); !IsCorruptState(err) {
		t.Errorf("Expected CorruptStateError, got %v", err)
	}
}
