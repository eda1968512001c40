package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mnemos/internal/logging"
	"mnemos/internal/memory"
)

// InsertKnowledgeItem persists a new knowledge item and returns its id.
// Embedding dimensionality is validated against the corpus: a mismatch is an
// IntegrityError and nothing is written. The first insert pins the corpus
// dimensionality when none was configured.
func (s *Store) InsertKnowledgeItem(ctx context.Context, item *memory.KnowledgeItem) (int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "InsertKnowledgeItem")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(item.Embedding) == 0 {
		return 0, &memory.IntegrityError{Op: "InsertKnowledgeItem", Err: fmt.Errorf("empty embedding")}
	}
	if s.dims == 0 {
		s.dims = len(item.Embedding)
	} else if len(item.Embedding) != s.dims {
		return 0, &memory.IntegrityError{
			Op:  "InsertKnowledgeItem",
			Err: fmt.Errorf("embedding dimensionality %d does not match corpus %d", len(item.Embedding), s.dims),
		}
	}

	embeddingJSON, err := json.Marshal(item.Embedding)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize embedding: %w", err)
	}
	provenanceJSON, err := json.Marshal(item.Provenance)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize provenance: %w", err)
	}

	logging.StoreDebug("Inserting knowledge item: user=%s topic=%s content_len=%d confidence=%.2f",
		item.UserID, item.Topic, len(item.Content), item.Confidence)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge_items (user_id, topic, content, embedding_blob, confidence, provenance_blob)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.UserID, item.Topic, item.Content, string(embeddingJSON), item.Confidence, string(provenanceJSON),
	)
	if err != nil {
		logging.StoreError("Failed to insert knowledge item for user %s: %v", item.UserID, err)
		return 0, integrityOr("InsertKnowledgeItem", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	item.ID = id

	logging.StoreDebug("Knowledge item inserted: id=%d topic=%s", id, item.Topic)
	return id, nil
}

// UpdateKnowledgeItem writes merged content, confidence, and provenance back
// to an existing item. The row is matched by (id, userID); updating another
// user's item yields NotFoundError.
func (s *Store) UpdateKnowledgeItem(ctx context.Context, id int64, userID, mergedContent string, confidence float64, provenance []string) error {
	timer := logging.StartTimer(logging.CategoryStore, "UpdateKnowledgeItem")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	provenanceJSON, err := json.Marshal(provenance)
	if err != nil {
		return fmt.Errorf("failed to serialize provenance: %w", err)
	}

	logging.StoreDebug("Updating knowledge item: id=%d user=%s content_len=%d", id, userID, len(mergedContent))

	res, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_items
		 SET content = ?, confidence = ?, provenance_blob = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		mergedContent, confidence, string(provenanceJSON), id, userID,
	)
	if err != nil {
		logging.StoreError("Failed to update knowledge item %d: %v", id, err)
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &memory.NotFoundError{Entity: "knowledge item", Key: fmt.Sprintf("%d", id)}
	}

	return nil
}

// KnowledgeByUser returns the full knowledge candidate set for one user, for
// the similarity scan. A row with a corrupt embedding or provenance blob is
// excluded and logged; it never aborts the whole scan.
func (s *Store) KnowledgeByUser(ctx context.Context, userID string) ([]memory.KnowledgeItem, error) {
	timer := logging.StartTimer(logging.CategoryStore, "KnowledgeByUser")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, content, embedding_blob, confidence, created_at, updated_at, provenance_blob
		 FROM knowledge_items
		 WHERE user_id = ?
		 ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		logging.StoreError("Failed to query knowledge for user %s: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	var items []memory.KnowledgeItem
	corrupt := 0
	for rows.Next() {
		var item memory.KnowledgeItem
		var embeddingJSON, provenanceJSON string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&item.ID, &item.Topic, &item.Content, &embeddingJSON, &item.Confidence, &createdAt, &updatedAt, &provenanceJSON); err != nil {
			corrupt++
			continue
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &item.Embedding); err != nil {
			corrupt++
			continue
		}
		if err := json.Unmarshal([]byte(provenanceJSON), &item.Provenance); err != nil {
			corrupt++
			continue
		}
		item.UserID = userID
		item.CreatedAt = createdAt
		item.UpdatedAt = updatedAt
		items = append(items, item)
	}
	if corrupt > 0 {
		logging.StoreWarn("KnowledgeByUser: excluded %d corrupt rows for user=%s", corrupt, userID)
	}

	logging.StoreDebug("Retrieved %d knowledge items for user=%s", len(items), userID)
	return items, rows.Err()
}

// KnowledgeCount returns the number of knowledge items for a user.
func (s *Store) KnowledgeCount(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM knowledge_items WHERE user_id = ?`, userID,
	).Scan(&count)
	return count, err
}
