package memory

import (
	"encoding/json"
	"fmt"
	"time"
)

// Blob schema versions:
// v1: profiles stored expertise under "interests"; workspaces stored a single
//     free-text "notes" field instead of the four named fields.
// v2: current shape. Old payloads are migrated on load.
const (
	ProfileSchemaVersion      = 2
	WorkspaceSchemaVersion    = 2
	ConversationSchemaVersion = 1
)

type profileBlob struct {
	SchemaVersion      int               `json:"schema_version"`
	Preferences        map[string]string `json:"preferences,omitempty"`
	Goals              []string          `json:"goals,omitempty"`
	Expertise          []string          `json:"expertise,omitempty"`
	Interests          []string          `json:"interests,omitempty"` // v1 name for expertise
	CommunicationStyle string            `json:"communication_style,omitempty"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// EncodeProfile serializes a profile at the current schema version.
func EncodeProfile(p *Profile) ([]byte, error) {
	return json.Marshal(profileBlob{
		SchemaVersion:      ProfileSchemaVersion,
		Preferences:        p.Preferences,
		Goals:              p.Goals,
		Expertise:          p.Expertise,
		CommunicationStyle: p.CommunicationStyle,
		UpdatedAt:          p.UpdatedAt,
	})
}

// DecodeProfile deserializes a profile blob, migrating v1 payloads.
func DecodeProfile(userID string, raw []byte) (*Profile, error) {
	if len(raw) < 2 {
		return nil, &CorruptStateError{Entity: "profile", Key: userID, Err: fmt.Errorf("undersized payload (%d bytes)", len(raw))}
	}
	var b profileBlob
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, &CorruptStateError{Entity: "profile", Key: userID, Err: err}
	}
	p := &Profile{
		UserID:             userID,
		Preferences:        b.Preferences,
		Goals:              b.Goals,
		Expertise:          b.Expertise,
		CommunicationStyle: b.CommunicationStyle,
		UpdatedAt:          b.UpdatedAt,
	}
	if b.SchemaVersion <= 1 && len(p.Expertise) == 0 {
		p.Expertise = b.Interests
	}
	if p.Preferences == nil {
		p.Preferences = make(map[string]string)
	}
	return p, nil
}

type conversationBlob struct {
	SchemaVersion int       `json:"schema_version"`
	Messages      []Message `json:"messages"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EncodeConversation serializes the message thread.
func EncodeConversation(c *Conversation) ([]byte, error) {
	return json.Marshal(conversationBlob{
		SchemaVersion: ConversationSchemaVersion,
		Messages:      c.Messages,
		UpdatedAt:     c.UpdatedAt,
	})
}

// DecodeConversation deserializes a conversation blob.
func DecodeConversation(id, userID string, raw []byte) (*Conversation, error) {
	if len(raw) < 2 {
		return nil, &CorruptStateError{Entity: "conversation", Key: id, Err: fmt.Errorf("undersized payload (%d bytes)", len(raw))}
	}
	var b conversationBlob
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, &CorruptStateError{Entity: "conversation", Key: id, Err: err}
	}
	return &Conversation{
		ID:        id,
		UserID:    userID,
		Messages:  b.Messages,
		UpdatedAt: b.UpdatedAt,
	}, nil
}

type workspaceBlob struct {
	SchemaVersion  int       `json:"schema_version"`
	ConversationID string    `json:"conversation_id"`
	Objective      string    `json:"objective,omitempty"`
	Understanding  string    `json:"understanding,omitempty"`
	Approach       string    `json:"approach,omitempty"`
	Discoveries    string    `json:"discoveries,omitempty"`
	Notes          string    `json:"notes,omitempty"` // v1 single free-text field
	UpdatedAt      time.Time `json:"updated_at"`
}

// EncodeWorkspace serializes a workspace at the current schema version.
func EncodeWorkspace(w *Workspace) ([]byte, error) {
	return json.Marshal(workspaceBlob{
		SchemaVersion:  WorkspaceSchemaVersion,
		ConversationID: w.ConversationID,
		Objective:      w.Objective,
		Understanding:  w.Understanding,
		Approach:       w.Approach,
		Discoveries:    w.Discoveries,
		UpdatedAt:      w.UpdatedAt,
	})
}

// DecodeWorkspace deserializes a workspace blob, migrating v1 payloads
// (the old free-text notes field lands in Discoveries).
func DecodeWorkspace(taskID, userID string, raw []byte) (*Workspace, error) {
	if len(raw) < 2 {
		return nil, &CorruptStateError{Entity: "workspace", Key: taskID, Err: fmt.Errorf("undersized payload (%d bytes)", len(raw))}
	}
	var b workspaceBlob
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, &CorruptStateError{Entity: "workspace", Key: taskID, Err: err}
	}
	w := &Workspace{
		TaskID:         taskID,
		UserID:         userID,
		ConversationID: b.ConversationID,
		Objective:      b.Objective,
		Understanding:  b.Understanding,
		Approach:       b.Approach,
		Discoveries:    b.Discoveries,
		UpdatedAt:      b.UpdatedAt,
	}
	if b.SchemaVersion <= 1 && b.Notes != "" && w.Discoveries == "" {
		w.Discoveries = b.Notes
	}
	return w, nil
}
