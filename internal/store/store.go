package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"chizu/campus-client/internal/datacache"
	"chizu/campus-client/internal/model"

	_ "modernc.org/sqlite"
)

const (
	campusSnapshot = "campus"
	scheduleKey    = "schedule"
)

// Store wraps the SQLite database connection and schema lifecycle.
type Store struct {
	db *sql.DB
}

// ActionError is a mutating action that failed and was abandoned.
type ActionError struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Username  string    `json:"username,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// Open initializes the database connection, creating directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema ensures baseline tables exist.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			kind TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			fetched_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS user_kv (
			username TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
			PRIMARY KEY (username, key)
		);`,
		`CREATE TABLE IF NOT EXISTS action_errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			username TEXT,
			payload TEXT,
			error TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);`,
		`CREATE INDEX IF NOT EXISTS idx_action_errors_created ON action_errors(created_at);`,
		`CREATE TABLE IF NOT EXISTS app_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	return s.db.PingContext(ctx)
}

// SaveSnapshot keeps the latest campus data for offline starts.
func (s *Store) SaveSnapshot(ctx context.Context, snap datacache.Snapshot) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	fetchedAt := snap.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO snapshots (kind, payload, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(kind) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at;`,
		campusSnapshot,
		string(payload),
		fetchedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the saved campus data. ok is false when nothing has
// been saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (snap datacache.Snapshot, ok bool, err error) {
	if s.db == nil {
		return datacache.Snapshot{}, false, fmt.Errorf("store not initialized")
	}

	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE kind = ?;`, campusSnapshot).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return datacache.Snapshot{}, false, nil
	}
	if err != nil {
		return datacache.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return datacache.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

// PutUserValue stores a per-user value.
func (s *Store) PutUserValue(ctx context.Context, username, key, value string) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	if username == "" {
		return fmt.Errorf("put user value: username is required")
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO user_kv (username, key, value, updated_at) VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		 ON CONFLICT(username, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`,
		username,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("put user value: %w", err)
	}
	return nil
}

// UserValue loads a per-user value.
func (s *Store) UserValue(ctx context.Context, username, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, fmt.Errorf("store not initialized")
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM user_kv WHERE username = ? AND key = ?;`, username, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get user value: %w", err)
	}
	return value, true, nil
}

// Schedule loads a user's personal class schedule (may be empty).
func (s *Store) Schedule(ctx context.Context, username string) ([]model.ScheduleEntry, error) {
	raw, ok, err := s.UserValue(ctx, username, scheduleKey)
	if err != nil || !ok {
		return nil, err
	}

	var entries []model.ScheduleEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return entries, nil
}

// SaveSchedule persists a user's personal class schedule.
func (s *Store) SaveSchedule(ctx context.Context, username string, entries []model.ScheduleEntry) error {
	bytes, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return s.PutUserValue(ctx, username, scheduleKey, string(bytes))
}

// InsertActionError records an abandoned mutating action.
func (s *Store) InsertActionError(ctx context.Context, e ActionError) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO action_errors (action, username, payload, error) VALUES (?, ?, ?, ?);`,
		e.Action,
		e.Username,
		e.Payload,
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("insert action error: %w", err)
	}
	return nil
}

// RecentActionErrors returns abandoned actions newest first.
func (s *Store) RecentActionErrors(ctx context.Context, limit int) ([]ActionError, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	if limit <= 0 {
		limit = 25
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, action, username, payload, error, created_at
		 FROM action_errors
		 ORDER BY id DESC
		 LIMIT ?;`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query action errors: %w", err)
	}
	defer rows.Close()

	errs := make([]ActionError, 0, limit)
	for rows.Next() {
		var (
			e         ActionError
			username  sql.NullString
			payload   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Action, &username, &payload, &e.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan action error: %w", err)
		}
		e.Username = username.String
		e.Payload = payload.String

		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			e.CreatedAt, _ = time.Parse("2006-01-02T15:04:05Z07:00", createdAt)
		}
		errs = append(errs, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action errors: %w", err)
	}

	return errs, nil
}

// UpsertAppConfig stores or updates a configuration key/value pair.
func (s *Store) UpsertAppConfig(ctx context.Context, key, value string) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO app_config (key, value, updated_at) VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("upsert app config: %w", err)
	}
	return nil
}

// AppConfig returns all configuration entries as a map.
func (s *Store) AppConfig(ctx context.Context) (map[string]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_config;`)
	if err != nil {
		return nil, fmt.Errorf("query app config: %w", err)
	}
	defer rows.Close()

	config := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan app config: %w", err)
		}
		config[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate app config: %w", err)
	}

	return config, nil
}

// WipeData removes cached campus data and the action log while keeping
// per-user values and configuration.
func (s *Store) WipeData(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}

	stmts := []string{
		`DELETE FROM snapshots;`,
		`DELETE FROM action_errors;`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("wipe data: %w", err)
		}
	}

	return nil
}
