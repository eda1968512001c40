// Package store implements the durable, transactional relational store for
// the three memory horizons (profiles, conversations, task workspaces) and
// the consolidated knowledge items, on top of a single embedded SQLite
// database.
//
// Every query is scoped by user identifier: no read or write may span users.
// Concurrency discipline: WAL journaling gives single-writer-at-a-time with
// concurrent readers; callers must not assume row-level locking beyond the
// transaction boundary.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"

	"mnemos/internal/logging"
	"mnemos/internal/memory"
)

// Store provides CRUD for Profile, Conversation, Workspace, and
// KnowledgeItem over one SQLite connection pool shared by all components.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string

	// Expected embedding dimensionality; validated on every knowledge
	// insert. Zero means adopt the dimensionality of the first insert.
	dims int
}

// Open initializes the SQLite database at the given path.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening store at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// PRAGMA synchronous=NORMAL provides a large write speedup with WAL mode.
	// Safe because WAL already provides crash recovery.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to enable sqlite foreign_keys: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.Store("Store initialization complete (profiles, conversations, workspaces, knowledge)")
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	profilesTable := `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		profile_blob TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	conversationsTable := `
	CREATE TABLE IF NOT EXISTS conversations (
		conversation_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
		messages_blob TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);
	`

	workspacesTable := `
	CREATE TABLE IF NOT EXISTS task_workspaces (
		task_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
		workspace_blob TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_workspaces_user ON task_workspaces(user_id);
	`

	knowledgeTable := `
	CREATE TABLE IF NOT EXISTS knowledge_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
		topic TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding_blob TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		provenance_blob TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_user ON knowledge_items(user_id);
	CREATE INDEX IF NOT EXISTS idx_knowledge_topic ON knowledge_items(topic);
	`

	for _, table := range []string{
		profilesTable,
		conversationsTable,
		workspacesTable,
		knowledgeTable,
	} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Run schema migrations for existing databases (adds missing columns).
	if err := RunMigrations(s.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// SetEmbeddingDimensions pins the expected embedding dimensionality for the
// knowledge corpus. Inserts with a different length fail with IntegrityError.
func (s *Store) SetEmbeddingDimensions(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dims = n
}

// Close closes the database connection.
func (s *Store) Close() error {
	logging.Store("Closing store database connection")
	return s.db.Close()
}

// DB returns the underlying SQL database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Stats returns row counts per table.
func (s *Store) Stats() (map[string]int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Stats")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{"profiles", "conversations", "task_workspaces", "knowledge_items"}

	for _, table := range tables {
		var count int64
		err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			logging.StoreDebug("Table %s count failed: %v", table, err)
			continue
		}
		stats[table] = count
	}

	return stats, nil
}

// isConstraintErr reports whether err is an SQLite constraint violation
// (foreign key, unique, check).
func isConstraintErr(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}

// integrityOr wraps constraint violations in memory.IntegrityError and
// returns other errors unchanged.
func integrityOr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isConstraintErr(err) {
		return &memory.IntegrityError{Op: op, Err: err}
	}
	return err
}
