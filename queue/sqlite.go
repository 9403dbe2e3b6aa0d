package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore is a local queue with the same shape as the Supabase table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS videos (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(status, created_at);
`)
	return err
}

func (s *SQLiteStore) NextPending(ctx context.Context) (Item, error) {
	var it Item
	var desc sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, status FROM videos
		WHERE status = ?
		ORDER BY created_at, rowid
		LIMIT 1`, StatusPending).Scan(&it.ID, &it.Title, &desc, &it.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrEmpty
	}
	if err != nil {
		return Item{}, err
	}
	it.Description = desc.String
	return it, nil
}

func (s *SQLiteStore) Transition(ctx context.Context, id string, from, to Status) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE videos SET status = ? WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Enqueue(ctx context.Context, item Item) error {
	if item.ID == "" || item.Title == "" {
		return errors.New("id and title are required")
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	var desc sql.NullString
	if item.Description != "" {
		desc = sql.NullString{String: item.Description, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (id, title, description, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		item.ID, item.Title, desc, item.Status, time.Now().UTC().Format(timeLayout))
	return err
}

func (s *SQLiteStore) List(ctx context.Context, status Status, limit int) ([]Item, error) {
	query := `SELECT id, title, description, status FROM videos`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at, rowid`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var desc sql.NullString
		if err := rows.Scan(&it.ID, &it.Title, &desc, &it.Status); err != nil {
			return nil, err
		}
		it.Description = desc.String
		items = append(items, it)
	}
	return items, rows.Err()
}
