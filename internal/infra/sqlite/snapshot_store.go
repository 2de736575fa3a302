// Package sqlite keeps game snapshots in a local SQLite file so a single
// facilitator device can resume a game after a restart.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"

	"truth-or-dare-service/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS game_snapshots (
	game_id    TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);`

// SnapshotStore implements app.SnapshotStore on top of SQLite.
type SnapshotStore struct {
	db *sql.DB
}

// Open creates the database file and schema if needed.
func Open(ctx context.Context, path string) (*SnapshotStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func (s *SnapshotStore) Load(ctx context.Context, gameID string) (domain.GameState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM game_snapshots WHERE game_id = ?`, gameID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GameState{}, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return domain.GameState{}, fmt.Errorf("load snapshot: %w", err)
	}
	var state domain.GameState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return domain.GameState{}, fmt.Errorf("%w: %v", domain.ErrCorruptSnapshot, err)
	}
	return state, nil
}

func (s *SnapshotStore) Save(ctx context.Context, state domain.GameState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO game_snapshots (game_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(game_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		state.ID, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Delete(ctx context.Context, gameID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM game_snapshots WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Latest returns the ID of the most recently saved game.
func (s *SnapshotStore) Latest(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT game_id FROM game_snapshots ORDER BY updated_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrSnapshotNotFound
	}
	if err != nil {
		return "", fmt.Errorf("latest snapshot: %w", err)
	}
	return id, nil
}
