package store

import (
	"context"
	"database/sql"

	"mnemos/internal/logging"
	"mnemos/internal/memory"
)

// SaveConversation upserts a conversation by its primary key. The write is
// idempotent: saving identical content twice leaves one row with an
// unchanged message sequence.
func (s *Store) SaveConversation(ctx context.Context, c *memory.Conversation) error {
	timer := logging.StartTimer(logging.CategoryStore, "SaveConversation")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := memory.EncodeConversation(c)
	if err != nil {
		return err
	}

	logging.StoreDebug("Saving conversation: id=%s user=%s messages=%d", c.ID, c.UserID, len(c.Messages))

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, user_id, messages_blob, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(conversation_id) DO UPDATE SET
		   messages_blob = excluded.messages_blob,
		   updated_at = CURRENT_TIMESTAMP`,
		c.ID, c.UserID, string(blob),
	)
	if err != nil {
		logging.StoreError("Failed to save conversation %s: %v", c.ID, err)
		return integrityOr("SaveConversation", err)
	}

	return nil
}

// LoadConversation loads a conversation by id for the given user. If the
// stored owner does not match userID the load fails closed with
// NotFoundError - cross-tenant access is denied, not silently rerouted.
func (s *Store) LoadConversation(ctx context.Context, conversationID, userID string) (*memory.Conversation, error) {
	timer := logging.StartTimer(logging.CategoryStore, "LoadConversation")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var owner, blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, messages_blob FROM conversations WHERE conversation_id = ?`,
		conversationID,
	).Scan(&owner, &blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &memory.NotFoundError{Entity: "conversation", Key: conversationID}
		}
		logging.StoreError("Failed to load conversation %s: %v", conversationID, err)
		return nil, err
	}

	if owner != userID {
		logging.StoreWarn("Cross-tenant conversation access denied: id=%s requested_by=%s", conversationID, userID)
		return nil, &memory.NotFoundError{Entity: "conversation", Key: conversationID}
	}

	c, err := memory.DecodeConversation(conversationID, userID, []byte(blob))
	if err != nil {
		logging.StoreError("Corrupt conversation blob: id=%s: %v", conversationID, err)
		return nil, err
	}

	logging.StoreDebug("Loaded conversation: id=%s messages=%d", conversationID, len(c.Messages))
	return c, nil
}

// DeleteConversation removes a conversation row.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Deleting conversation: id=%s", conversationID)

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE conversation_id = ?`, conversationID)
	if err != nil {
		logging.StoreError("Failed to delete conversation %s: %v", conversationID, err)
	}
	return err
}
