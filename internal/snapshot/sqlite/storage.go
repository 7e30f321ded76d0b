package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/katanos/katanos/internal/snapshot"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Journal is the SQLite implementation of snapshot.Journal.
type Journal struct {
	db *sql.DB
}

var _ snapshot.Journal = (*Journal)(nil)

// New opens the journal database at dbPath.
// Use ":memory:" for an in-memory database (useful for testing).
func New(ctx context.Context, dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite с WAL mode: несколько читателей, один писатель
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	j := &Journal{db: db}

	if err := j.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// runMigrations выполняет миграции из embedded FS
func (j *Journal) runMigrations() error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.Up(j.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

// Record appends a snapshot of the full store state.
func (j *Journal) Record(ctx context.Context, state []byte) error {
	query := `INSERT INTO snapshots (taken_at, state) VALUES (?, ?)`

	if _, err := j.db.ExecContext(ctx, query, time.Now().UTC(), state); err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}

	return nil
}

// Latest returns the most recent snapshot.
func (j *Journal) Latest(ctx context.Context) (*snapshot.Entry, error) {
	query := `SELECT id, taken_at, state FROM snapshots ORDER BY id DESC LIMIT 1`

	var entry snapshot.Entry
	err := j.db.QueryRowContext(ctx, query).Scan(&entry.ID, &entry.TakenAt, &entry.State)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, snapshot.ErrNoSnapshots
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest snapshot: %w", err)
	}

	return &entry, nil
}

// Prune keeps only the newest keep snapshots.
func (j *Journal) Prune(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}

	query := `DELETE FROM snapshots WHERE id NOT IN (
		SELECT id FROM snapshots ORDER BY id DESC LIMIT ?
	)`

	if _, err := j.db.ExecContext(ctx, query, keep); err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	return nil
}
