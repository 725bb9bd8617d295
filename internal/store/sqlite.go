// ABOUTME: SQLite-backed conversation directory store using modernc.org/sqlite
// ABOUTME: Persists the user-to-thread mapping so threads survive process restarts

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the directory.Store interface on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite store at the given path.
// The schema is created automatically, as are parent directories.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite directory store initialized", "path", path)
	return s, nil
}

// createSchema creates the conversations table if it doesn't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			user_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			last_seen_at DATETIME NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the thread for a user, or ("", nil) if none is stored.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (string, error) {
	var threadID string
	err := s.db.QueryRowContext(ctx,
		"SELECT thread_id FROM conversations WHERE user_id = ?", userID,
	).Scan(&threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying conversation: %w", err)
	}

	// Touch last_seen_at outside the hot path's error flow; failure to
	// update recency must not hide a valid thread handle.
	if _, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET last_seen_at = ? WHERE user_id = ?",
		time.Now().UTC(), userID,
	); err != nil {
		s.logger.Warn("failed to update last_seen_at", "user_id", userID, "error", err)
	}

	return threadID, nil
}

// Put stores the thread for a user, overwriting any existing entry.
func (s *SQLiteStore) Put(ctx context.Context, userID, threadID string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (user_id, thread_id, created_at, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET thread_id = excluded.thread_id, last_seen_at = excluded.last_seen_at`,
		userID, threadID, now, now,
	)
	if err != nil {
		return fmt.Errorf("storing conversation: %w", err)
	}
	return nil
}

// Len returns the number of tracked conversations.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting conversations: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
