// Package lifecycle drives one task's state machine over the three memory
// horizons: NotStarted -> Active -> Completed, or Active -> Abandoned.
//
// The manager serializes nothing itself: operations on one task must be
// serialized by the caller. Concurrent writers to the same task produce a
// last-write-wins outcome and are a caller error. Tasks belonging to
// different users are safe to run concurrently; isolation comes from
// mandatory user scoping on every store query.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"mnemos/internal/logging"
	"mnemos/internal/memory"
	"mnemos/internal/store"
)

// Status is the lifecycle state of a task.
type Status int

const (
	StatusNotStarted Status = iota
	StatusActive
	StatusCompleted
	StatusAbandoned
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// TaskState binds one execution episode to its user, conversation, and
// workspace. It is the unit the reasoning consumer reads (via the assembly
// facade) and the mutation helpers write through.
type TaskState struct {
	TaskID       string
	Profile      *memory.Profile
	Conversation *memory.Conversation
	Workspace    *memory.Workspace

	status Status
}

// Status returns the task's lifecycle state.
func (st *TaskState) Status() Status { return st.status }

// UserID returns the owning user.
func (st *TaskState) UserID() string { return st.Profile.UserID }

// Manager loads, mutates, and persists task state through the store.
type Manager struct {
	store *store.Store
}

// NewManager creates a lifecycle manager over the shared store.
func NewManager(st *store.Store) *Manager {
	return &Manager{store: st}
}

// StartTask begins a new task for a user: loads or creates the profile,
// loads the conversation by id or creates a new thread, and creates a fresh
// empty workspace keyed by a generated task id. Pass conversationID == ""
// to start a new thread.
//
// Corrupt prior state is treated as absence (logged loudly), never silently
// coerced into the new task.
func (m *Manager) StartTask(ctx context.Context, query, userID, conversationID string) (*TaskState, error) {
	timer := logging.StartTimer(logging.CategoryLifecycle, "StartTask")
	defer timer.Stop()

	if userID == "" {
		return nil, fmt.Errorf("user id required")
	}

	profile, err := m.store.LoadProfile(ctx, userID)
	if err != nil {
		if !memory.IsCorruptState(err) {
			return nil, err
		}
		logging.LifecycleWarn("Profile for user=%s is corrupt, starting fresh: %v", userID, err)
		profile = nil
	}
	if profile == nil {
		profile = memory.NewProfile(userID)
		if err := m.store.SaveProfile(ctx, profile); err != nil {
			return nil, err
		}
		logging.Lifecycle("Created profile for new user=%s", userID)
	}

	var conversation *memory.Conversation
	if conversationID == "" {
		conversationID = uuid.NewString()
		conversation = memory.NewConversation(conversationID, userID)
	} else {
		conversation, err = m.store.LoadConversation(ctx, conversationID, userID)
		switch {
		case err == nil:
		case memory.IsNotFound(err):
			conversation = memory.NewConversation(conversationID, userID)
		case memory.IsCorruptState(err):
			logging.LifecycleWarn("Conversation %s is corrupt, starting fresh thread: %v", conversationID, err)
			conversation = memory.NewConversation(conversationID, userID)
		default:
			return nil, err
		}
	}

	taskID := uuid.NewString()
	workspace := memory.NewWorkspace(taskID, userID, conversationID)
	workspace.Objective = query

	if err := m.store.SaveWorkspace(ctx, workspace); err != nil {
		return nil, err
	}

	logging.Lifecycle("Task started: task=%s user=%s conversation=%s", taskID, userID, conversationID)

	return &TaskState{
		TaskID:       taskID,
		Profile:      profile,
		Conversation: conversation,
		Workspace:    workspace,
		status:       StatusActive,
	}, nil
}

// ContinueTask resumes an open task. A completed task has no workspace, so
// continuing it yields NotFoundError - no empty workspace is fabricated.
func (m *Manager) ContinueTask(ctx context.Context, taskID, userID string) (*TaskState, error) {
	timer := logging.StartTimer(logging.CategoryLifecycle, "ContinueTask")
	defer timer.Stop()

	workspace, err := m.store.LoadWorkspace(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	profile, err := m.store.LoadProfile(ctx, userID)
	if err != nil {
		if !memory.IsCorruptState(err) {
			return nil, err
		}
		logging.LifecycleWarn("Profile for user=%s is corrupt on continue: %v", userID, err)
		profile = nil
	}
	if profile == nil {
		profile = memory.NewProfile(userID)
	}

	conversation, err := m.store.LoadConversation(ctx, workspace.ConversationID, userID)
	switch {
	case err == nil:
	case memory.IsNotFound(err), memory.IsCorruptState(err):
		logging.LifecycleWarn("Conversation %s missing or corrupt on continue, starting fresh thread", workspace.ConversationID)
		conversation = memory.NewConversation(workspace.ConversationID, userID)
	default:
		return nil, err
	}

	logging.Lifecycle("Task continued: task=%s user=%s", taskID, userID)

	return &TaskState{
		TaskID:       taskID,
		Profile:      profile,
		Conversation: conversation,
		Workspace:    workspace,
		status:       StatusActive,
	}, nil
}

// CompleteTask persists the final profile and conversation and deletes the
// workspace, atomically. This is the only path that deletes a workspace
// under normal operation. The transition Active -> Completed is terminal.
func (m *Manager) CompleteTask(ctx context.Context, st *TaskState) error {
	timer := logging.StartTimer(logging.CategoryLifecycle, "CompleteTask")
	defer timer.Stop()

	if st.status != StatusActive {
		return fmt.Errorf("task %s is %s, not active", st.TaskID, st.status)
	}

	if err := m.store.CompleteTask(ctx, st.Profile, st.Conversation, st.TaskID); err != nil {
		return err
	}

	st.status = StatusCompleted
	st.Workspace = nil
	logging.Lifecycle("Task completed: task=%s user=%s", st.TaskID, st.UserID())
	return nil
}

// AbandonTask discards a task without completing it. The workspace is still
// deleted to avoid leaks; profile and conversation keep their last saved
// state. The transition Active -> Abandoned is terminal.
func (m *Manager) AbandonTask(ctx context.Context, st *TaskState) error {
	if st.status != StatusActive {
		return fmt.Errorf("task %s is %s, not active", st.TaskID, st.status)
	}

	if err := m.store.DeleteWorkspace(ctx, st.TaskID); err != nil {
		return err
	}

	st.status = StatusAbandoned
	st.Workspace = nil
	logging.Lifecycle("Task abandoned: task=%s user=%s", st.TaskID, st.UserID())
	return nil
}

// AppendMessage appends a turn to the conversation and writes it through to
// the store. The caller controls write cadence by choosing when to call
// mutation helpers; nothing is buffered indefinitely.
func (m *Manager) AppendMessage(ctx context.Context, st *TaskState, role, content string) error {
	if st.status != StatusActive {
		return fmt.Errorf("task %s is %s, not active", st.TaskID, st.status)
	}

	st.Conversation.Append(role, content)
	return m.store.SaveConversation(ctx, st.Conversation)
}

// UpdateWorkspace sets one of the four named workspace fields and writes the
// workspace through to the store. Unknown fields are rejected.
func (m *Manager) UpdateWorkspace(ctx context.Context, st *TaskState, field, value string) error {
	if st.status != StatusActive {
		return fmt.Errorf("task %s is %s, not active", st.TaskID, st.status)
	}

	if err := st.Workspace.SetField(field, value); err != nil {
		return err
	}
	return m.store.SaveWorkspace(ctx, st.Workspace)
}
