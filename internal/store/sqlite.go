package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/safedrive/reminderd/internal/domain"
	"github.com/safedrive/reminderd/internal/shared"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS principals (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS push_subscriptions (
		endpoint TEXT PRIMARY KEY,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// execWithRetry retries writes that hit SQLite concurrency errors with
// exponential backoff (50ms, 100ms, 200ms).
func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...interface{}) error {
	const maxRetries = 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		_, err = s.db.ExecContext(ctx, query, args...)
		if err == nil || !shared.IsSQLiteConflict(err) {
			return err
		}
		if i < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<i))
		}
	}
	return err
}

func (s *SQLiteStore) label(ctx context.Context, table, column, id string) (string, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", column, table)

	var label string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("scan %s row: %w", table, err)
	}
	return label, nil
}

func (s *SQLiteStore) upsertLabel(ctx context.Context, table, column, id, label string) error {
	query := fmt.Sprintf(`
	INSERT INTO %s (id, %s, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		%s = excluded.%s,
		updated_at = excluded.updated_at`, table, column, column, column)

	if err := s.execWithRetry(ctx, query, id, label, time.Now().Unix()); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

// SubjectLabel returns the label for an application, or "" when unknown.
func (s *SQLiteStore) SubjectLabel(ctx context.Context, id string) (string, error) {
	return s.label(ctx, "subjects", "label", id)
}

// UpsertSubject creates or updates a subject label.
func (s *SQLiteStore) UpsertSubject(ctx context.Context, id, label string) error {
	return s.upsertLabel(ctx, "subjects", "label", id, label)
}

// CategoryLabel returns the label for a permission category, or "" when unknown.
func (s *SQLiteStore) CategoryLabel(ctx context.Context, id string) (string, error) {
	return s.label(ctx, "categories", "label", id)
}

// UpsertCategory creates or updates a category label.
func (s *SQLiteStore) UpsertCategory(ctx context.Context, id, label string) error {
	return s.upsertLabel(ctx, "categories", "label", id, label)
}

// PrincipalName returns the display name for a user, or "" when unknown.
func (s *SQLiteStore) PrincipalName(ctx context.Context, id string) (string, error) {
	return s.label(ctx, "principals", "display_name", id)
}

// UpsertPrincipal creates or updates a principal display name.
func (s *SQLiteStore) UpsertPrincipal(ctx context.Context, id, name string) error {
	return s.upsertLabel(ctx, "principals", "display_name", id, name)
}

// SavePushSubscription stores a push subscription, replacing any existing
// subscription for the same endpoint.
func (s *SQLiteStore) SavePushSubscription(ctx context.Context, sub *domain.PushSubscription) error {
	query := `
	INSERT INTO push_subscriptions (endpoint, p256dh, auth, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(endpoint) DO UPDATE SET
		p256dh = excluded.p256dh,
		auth = excluded.auth`

	createdAt := sub.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if err := s.execWithRetry(ctx, query, sub.Endpoint, sub.P256dh, sub.Auth, createdAt.Unix()); err != nil {
		return fmt.Errorf("save push subscription: %w", err)
	}
	return nil
}

// ListPushSubscriptions returns all registered push subscriptions.
func (s *SQLiteStore) ListPushSubscriptions(ctx context.Context) ([]*domain.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT endpoint, p256dh, auth, created_at
		FROM push_subscriptions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.PushSubscription
	for rows.Next() {
		var sub domain.PushSubscription
		var createdAt int64
		if err := rows.Scan(&sub.Endpoint, &sub.P256dh, &sub.Auth, &createdAt); err != nil {
			return nil, fmt.Errorf("scan push subscription row: %w", err)
		}
		sub.CreatedAt = time.Unix(createdAt, 0)
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate push subscriptions: %w", err)
	}
	return subs, nil
}

// DeletePushSubscription removes the subscription for an endpoint.
func (s *SQLiteStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	if err := s.execWithRetry(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}
