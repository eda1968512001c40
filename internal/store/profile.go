package store

import (
	"context"
	"database/sql"

	"mnemos/internal/logging"
	"mnemos/internal/memory"
)

// SaveProfile upserts a profile by user id.
func (s *Store) SaveProfile(ctx context.Context, p *memory.Profile) error {
	timer := logging.StartTimer(logging.CategoryStore, "SaveProfile")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := memory.EncodeProfile(p)
	if err != nil {
		return err
	}

	logging.StoreDebug("Saving profile: user=%s blob_len=%d", p.UserID, len(blob))

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, profile_blob, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET
		   profile_blob = excluded.profile_blob,
		   updated_at = CURRENT_TIMESTAMP`,
		p.UserID, string(blob),
	)
	if err != nil {
		logging.StoreError("Failed to save profile for %s: %v", p.UserID, err)
		return integrityOr("SaveProfile", err)
	}

	return nil
}

// LoadProfile loads the profile for a user. A missing profile is not an
// error: (nil, nil) is returned so the caller can create fresh state. A
// corrupt blob yields CorruptStateError.
func (s *Store) LoadProfile(ctx context.Context, userID string) (*memory.Profile, error) {
	timer := logging.StartTimer(logging.CategoryStore, "LoadProfile")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT profile_blob FROM profiles WHERE user_id = ?`, userID,
	).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			logging.StoreDebug("No profile for user=%s", userID)
			return nil, nil
		}
		logging.StoreError("Failed to load profile for %s: %v", userID, err)
		return nil, err
	}

	p, err := memory.DecodeProfile(userID, []byte(blob))
	if err != nil {
		logging.StoreError("Corrupt profile blob for user=%s: %v", userID, err)
		return nil, err
	}

	logging.StoreDebug("Loaded profile: user=%s goals=%d expertise=%d", userID, len(p.Goals), len(p.Expertise))
	return p, nil
}

// DeleteProfile erases a user's tenant: profile, conversations, workspaces,
// and knowledge items, atomically. Conversations, workspaces and knowledge
// rows go with the profile via ON DELETE CASCADE.
func (s *Store) DeleteProfile(ctx context.Context, userID string) error {
	timer := logging.StartTimer(logging.CategoryStore, "DeleteProfile")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.Store("Erasing tenant data for user=%s", userID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = ?`, userID); err != nil {
		logging.StoreError("Failed to erase tenant %s: %v", userID, err)
		return err
	}

	return tx.Commit()
}
