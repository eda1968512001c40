package store

import (
	"context"
	"fmt"
	"time"

	"mnemos/internal/logging"
	"mnemos/internal/memory"
)

// completeTaskSlow is the duration past which a completion transaction is
// logged as a slow operation.
const completeTaskSlow = 500 * time.Millisecond

// CompleteTask persists the final profile and conversation and deletes the
// task workspace inside a single transaction. All three writes commit
// together or not at all: a crash can neither leave a dangling workspace
// forever nor lose the final conversation turn.
func (s *Store) CompleteTask(ctx context.Context, p *memory.Profile, c *memory.Conversation, taskID string) error {
	timer := logging.StartTimer(logging.CategoryPerformance, "CompleteTask")
	defer timer.StopWithThreshold(completeTaskSlow)

	if c.UserID != p.UserID {
		return &memory.IntegrityError{
			Op:  "CompleteTask",
			Err: fmt.Errorf("conversation %s owned by %s, profile is %s", c.ID, c.UserID, p.UserID),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profileBlob, err := memory.EncodeProfile(p)
	if err != nil {
		return err
	}
	conversationBlob, err := memory.EncodeConversation(c)
	if err != nil {
		return err
	}

	logging.Store("Completing task: task=%s user=%s conversation=%s", taskID, p.UserID, c.ID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO profiles (user_id, profile_blob, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET
		   profile_blob = excluded.profile_blob,
		   updated_at = CURRENT_TIMESTAMP`,
		p.UserID, string(profileBlob),
	); err != nil {
		logging.StoreError("CompleteTask: profile write failed for %s: %v", p.UserID, err)
		return integrityOr("CompleteTask", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, user_id, messages_blob, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(conversation_id) DO UPDATE SET
		   messages_blob = excluded.messages_blob,
		   updated_at = CURRENT_TIMESTAMP`,
		c.ID, c.UserID, string(conversationBlob),
	); err != nil {
		logging.StoreError("CompleteTask: conversation write failed for %s: %v", c.ID, err)
		return integrityOr("CompleteTask", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM task_workspaces WHERE task_id = ?`, taskID,
	); err != nil {
		logging.StoreError("CompleteTask: workspace delete failed for %s: %v", taskID, err)
		return err
	}

	if err := tx.Commit(); err != nil {
		logging.StoreError("CompleteTask: commit failed for task %s: %v", taskID, err)
		return err
	}

	logging.Store("Task completed atomically: task=%s", taskID)
	return nil
}
