// Package store persists last-good snapshots across restarts: the
// dashboard cache keyed by normalized account email, and the most
// recent usage snapshot per provider for warm-start display.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nyxkrage/quotabar/pkg/dashboard"
	"github.com/nyxkrage/quotabar/pkg/provider"
)

// Store manages the SQLite connection and schema.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at dbPath with WAL
// mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS dashboard_snapshots (
		email TEXT PRIMARY KEY,
		payload JSON NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS usage_snapshots (
		provider TEXT PRIMARY KEY,
		payload JSON NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create snapshot tables: %w", err)
	}
	return nil
}

// Load returns the cached dashboard snapshot for email, or nil when
// none is cached.
func (s *Store) Load(ctx context.Context, email string) (*dashboard.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT payload FROM dashboard_snapshots WHERE email = ?", email)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load dashboard snapshot: %w", err)
	}

	var snap dashboard.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode dashboard snapshot: %w", err)
	}
	return &snap, nil
}

// Save upserts the dashboard snapshot for email.
func (s *Store) Save(ctx context.Context, email string, snap dashboard.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode dashboard snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dashboard_snapshots (email, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		email, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save dashboard snapshot: %w", err)
	}
	return nil
}

// Delete drops the cached dashboard snapshot for email. Deleting an
// absent row is not an error.
func (s *Store) Delete(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM dashboard_snapshots WHERE email = ?", email); err != nil {
		return fmt.Errorf("failed to delete dashboard snapshot: %w", err)
	}
	return nil
}

// SaveUsage upserts the latest usage snapshot for a provider.
func (s *Store) SaveUsage(ctx context.Context, id provider.ID, snap provider.UsageSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode usage snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO usage_snapshots (provider, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(id), payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save usage snapshot: %w", err)
	}
	return nil
}

// LoadUsage returns all persisted usage snapshots keyed by provider.
func (s *Store) LoadUsage(ctx context.Context) (map[provider.ID]provider.UsageSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT provider, payload FROM usage_snapshots")
	if err != nil {
		return nil, fmt.Errorf("failed to query usage snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[provider.ID]provider.UsageSnapshot)
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan usage snapshot: %w", err)
		}
		var snap provider.UsageSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			// A corrupt row should not poison the warm start.
			continue
		}
		if pid := provider.ID(id); pid.Valid() {
			out[pid] = snap
		}
	}
	return out, rows.Err()
}
