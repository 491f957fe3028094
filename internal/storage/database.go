package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gallery/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

const defaultRetention = 90 * 24 * time.Hour

// DB is the login audit log. Events older than the retention window are
// pruned on every insert.
type DB struct {
	conn      *sql.DB
	retention time.Duration
	now       func() time.Time
}

func NewDB(dbPath string, retention time.Duration) (*DB, error) {
	if retention <= 0 {
		retention = defaultRetention
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, retention: retention, now: time.Now}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS login_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			remote_addr TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_login_events_created_at ON login_events(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_login_events_username ON login_events(username)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// RecordLogin stores one login attempt. Client-supplied fields are truncated
// to the audit limits and a zero CreatedAt is set to now.
func (db *DB) RecordLogin(ctx context.Context, event models.LoginEvent) (*models.LoginEvent, error) {
	event = event.Bounded()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = db.now()
	}
	event.CreatedAt = event.CreatedAt.UTC()

	if _, err := db.PruneBefore(ctx, db.now().Add(-db.retention)); err != nil {
		return nil, err
	}

	query := `INSERT INTO login_events (username, success, remote_addr, user_agent, created_at) VALUES (?, ?, ?, ?, ?)`
	result, err := db.conn.ExecContext(ctx, query, event.Username, event.Success, event.RemoteAddr, event.UserAgent, event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id

	return &event, nil
}

// RecentLogins returns up to limit events, newest first.
func (db *DB) RecentLogins(ctx context.Context, limit int) ([]models.LoginEvent, error) {
	query := `SELECT id, username, success, remote_addr, user_agent, created_at
		FROM login_events ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get login events: %w", err)
	}
	defer rows.Close()

	events := []models.LoginEvent{}
	for rows.Next() {
		var e models.LoginEvent
		if err := rows.Scan(&e.ID, &e.Username, &e.Success, &e.RemoteAddr, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan login event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read login events: %w", err)
	}

	return events, nil
}

// FailedLoginsSince counts failed attempts for username after since.
func (db *DB) FailedLoginsSince(ctx context.Context, username string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM login_events WHERE username = ? AND success = 0 AND created_at > ?`
	var count int
	if err := db.conn.QueryRowContext(ctx, query, username, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count failed logins: %w", err)
	}
	return count, nil
}

// PruneBefore deletes events created before cutoff and reports how many went.
func (db *DB) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM login_events WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune login events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned login events: %w", err)
	}
	return n, nil
}
