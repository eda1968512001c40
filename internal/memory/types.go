// Package memory defines the persistent data model for the three memory
// horizons: permanent user identity (Profile), conversation history
// (Conversation), and task-scoped scratch state (Workspace), plus the
// consolidated knowledge artifacts (KnowledgeItem).
//
// Every persisted blob carries a schema_version field so old payloads can be
// migrated on load instead of assuming a single fixed shape forever.
package memory

import (
	"fmt"
	"time"
)

// Bounds for profile list fields.
const (
	MaxGoals     = 20
	MaxExpertise = 30
)

// Profile is the permanent identity record for one user. At most one Profile
// exists per user identifier. It is created on first contact, mutated by task
// completion, and deleted only on explicit user-data erasure.
type Profile struct {
	UserID             string
	Preferences        map[string]string
	Goals              []string
	Expertise          []string
	CommunicationStyle string
	UpdatedAt          time.Time
}

// NewProfile creates an empty profile for a user.
func NewProfile(userID string) *Profile {
	return &Profile{
		UserID:      userID,
		Preferences: make(map[string]string),
		UpdatedAt:   time.Now().UTC(),
	}
}

// SetPreference records a key/value preference.
func (p *Profile) SetPreference(key, value string) {
	if p.Preferences == nil {
		p.Preferences = make(map[string]string)
	}
	p.Preferences[key] = value
	p.UpdatedAt = time.Now().UTC()
}

// AddGoal appends a goal, keeping the list bounded. The oldest goal is
// evicted once MaxGoals is reached.
func (p *Profile) AddGoal(goal string) {
	if goal == "" {
		return
	}
	p.Goals = append(p.Goals, goal)
	if len(p.Goals) > MaxGoals {
		p.Goals = p.Goals[len(p.Goals)-MaxGoals:]
	}
	p.UpdatedAt = time.Now().UTC()
}

// AddExpertise records an expertise area. The list is set-like: duplicates
// are ignored, and it is bounded by MaxExpertise (new entries beyond the
// bound are dropped).
func (p *Profile) AddExpertise(area string) {
	if area == "" {
		return
	}
	for _, e := range p.Expertise {
		if e == area {
			return
		}
	}
	if len(p.Expertise) >= MaxExpertise {
		return
	}
	p.Expertise = append(p.Expertise, area)
	p.UpdatedAt = time.Now().UTC()
}

// Message is one turn in a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is a persistent message thread owned by exactly one user.
// Messages are append-only and strictly ordered by insertion.
type Conversation struct {
	ID        string
	UserID    string
	Messages  []Message
	UpdatedAt time.Time
}

// NewConversation creates an empty conversation thread.
func NewConversation(id, userID string) *Conversation {
	return &Conversation{ID: id, UserID: userID, UpdatedAt: time.Now().UTC()}
}

// Append adds a message to the end of the thread.
func (c *Conversation) Append(role, content string) {
	c.Messages = append(c.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	c.UpdatedAt = time.Now().UTC()
}

// Workspace field names. The field set is closed: updates naming anything
// else are rejected at the boundary.
const (
	FieldObjective     = "objective"
	FieldUnderstanding = "understanding"
	FieldApproach      = "approach"
	FieldDiscoveries   = "discoveries"
)

// Workspace is the task-scoped cognitive scratch space. It exists only while
// its owning task is open and is deleted at task completion.
type Workspace struct {
	TaskID         string
	UserID         string
	ConversationID string
	Objective      string
	Understanding  string
	Approach       string
	Discoveries    string
	UpdatedAt      time.Time
}

// NewWorkspace creates a fresh workspace bound to a task, user, and thread.
func NewWorkspace(taskID, userID, conversationID string) *Workspace {
	return &Workspace{
		TaskID:         taskID,
		UserID:         userID,
		ConversationID: conversationID,
		UpdatedAt:      time.Now().UTC(),
	}
}

// SetField updates one of the four named workspace fields. Unknown field
// names are an error, not silently accepted.
func (w *Workspace) SetField(field, value string) error {
	switch field {
	case FieldObjective:
		w.Objective = value
	case FieldUnderstanding:
		w.Understanding = value
	case FieldApproach:
		w.Approach = value
	case FieldDiscoveries:
		w.Discoveries = value
	default:
		return fmt.Errorf("unknown workspace field: %q", field)
	}
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// Field returns the value of one of the four named workspace fields.
func (w *Workspace) Field(field string) (string, error) {
	switch field {
	case FieldObjective:
		return w.Objective, nil
	case FieldUnderstanding:
		return w.Understanding, nil
	case FieldApproach:
		return w.Approach, nil
	case FieldDiscoveries:
		return w.Discoveries, nil
	default:
		return "", fmt.Errorf("unknown workspace field: %q", field)
	}
}

// KnowledgeItem is one consolidated unit of accumulated knowledge for a user.
// Uniqueness is enforced semantically via similarity search, not by key: a
// sufficiently similar incoming candidate is merged into an existing item
// instead of creating a near-duplicate.
type KnowledgeItem struct {
	ID         int64
	UserID     string
	Topic      string
	Content    string
	Embedding  []float32
	Confidence float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Provenance []string
}

// AppendProvenance records a source conversation id, set-like.
func (k *KnowledgeItem) AppendProvenance(conversationID string) {
	if conversationID == "" {
		return
	}
	for _, p := range k.Provenance {
		if p == conversationID {
			return
		}
	}
	k.Provenance = append(k.Provenance, conversationID)
}
