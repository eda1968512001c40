package store

import (
	"context"
	"database/sql"

	"mnemos/internal/logging"
	"mnemos/internal/memory"
)

// SaveWorkspace upserts the scratch workspace for a task.
func (s *Store) SaveWorkspace(ctx context.Context, w *memory.Workspace) error {
	timer := logging.StartTimer(logging.CategoryStore, "SaveWorkspace")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := memory.EncodeWorkspace(w)
	if err != nil {
		return err
	}

	logging.StoreDebug("Saving workspace: task=%s user=%s", w.TaskID, w.UserID)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO task_workspaces (task_id, user_id, workspace_blob, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(task_id) DO UPDATE SET
		   workspace_blob = excluded.workspace_blob,
		   updated_at = CURRENT_TIMESTAMP`,
		w.TaskID, w.UserID, string(blob),
	)
	if err != nil {
		logging.StoreError("Failed to save workspace for task %s: %v", w.TaskID, err)
		return integrityOr("SaveWorkspace", err)
	}

	return nil
}

// LoadWorkspace loads the workspace for (taskID, userID). An absent row
// yields NotFoundError: a completed task has no workspace and cannot be
// continued.
func (s *Store) LoadWorkspace(ctx context.Context, taskID, userID string) (*memory.Workspace, error) {
	timer := logging.StartTimer(logging.CategoryStore, "LoadWorkspace")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT workspace_blob FROM task_workspaces WHERE task_id = ? AND user_id = ?`,
		taskID, userID,
	).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &memory.NotFoundError{Entity: "workspace", Key: taskID}
		}
		logging.StoreError("Failed to load workspace for task %s: %v", taskID, err)
		return nil, err
	}

	w, err := memory.DecodeWorkspace(taskID, userID, []byte(blob))
	if err != nil {
		logging.StoreError("Corrupt workspace blob: task=%s: %v", taskID, err)
		return nil, err
	}

	return w, nil
}

// DeleteWorkspace removes the workspace row for a task.
func (s *Store) DeleteWorkspace(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Deleting workspace: task=%s", taskID)

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM task_workspaces WHERE task_id = ?`, taskID)
	if err != nil {
		logging.StoreError("Failed to delete workspace for task %s: %v", taskID, err)
	}
	return err
}
