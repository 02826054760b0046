package leaderboard

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and runs migrations.
// A leading ~ expands to the home directory.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != "" && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("leaderboard: cannot expand home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("leaderboard: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: cannot open database: %w", err)
	}
	// single writer keeps sqlite from returning SQLITE_BUSY under concurrent wins
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("leaderboard: cannot connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("leaderboard: migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS wins (
			name TEXT PRIMARY KEY,
			wins INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_wins_top ON wins(wins DESC, name);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) RecordWin(ctx context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO wins (name, wins) VALUES (?, 1)
		 ON CONFLICT(name) DO UPDATE SET wins = wins + 1, updated_at = CURRENT_TIMESTAMP`,
		name,
	)
	if err != nil {
		return fmt.Errorf("leaderboard: cannot record win: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Top(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, wins FROM wins ORDER BY wins DESC, name ASC LIMIT ?`,
		NormalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: cannot query wins: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Score); err != nil {
			return nil, fmt.Errorf("leaderboard: cannot scan row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leaderboard: row iteration error: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
