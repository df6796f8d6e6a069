/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Seednode/pricebox/games/priceguess"
)

// Store persists item set definitions in SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS game_sets (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			pitch_line TEXT NOT NULL DEFAULT '',
			items TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// LoadSets returns every stored definition ordered by id.
func (s *Store) LoadSets(ctx context.Context) ([]priceguess.SetDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, pitch_line, items, created_at, updated_at
		FROM game_sets ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []priceguess.SetDefinition
	for rows.Next() {
		var (
			def   priceguess.SetDefinition
			items string
		)
		if err := rows.Scan(&def.ID, &def.Name, &def.PitchLine, &items, &def.CreatedAt, &def.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(items), &def.Items); err != nil {
			return nil, fmt.Errorf("set %d: decode items: %w", def.ID, err)
		}
		defs = append(defs, def)
	}

	return defs, rows.Err()
}

// SaveSet inserts def or replaces the row with the same id.
func (s *Store) SaveSet(ctx context.Context, def priceguess.SetDefinition) error {
	items, err := json.Marshal(def.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	if def.UpdatedAt.IsZero() {
		def.UpdatedAt = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO game_sets (id, name, pitch_line, items, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			pitch_line = excluded.pitch_line,
			items = excluded.items,
			updated_at = excluded.updated_at
	`, def.ID, def.Name, def.PitchLine, string(items), def.CreatedAt.UTC(), def.UpdatedAt.UTC())

	return err
}

// DeleteSet removes the set with the given id. Deleting a missing set is
// not an error.
func (s *Store) DeleteSet(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM game_sets WHERE id = ?`, id)
	return err
}
