// Package storage is the persistence boundary: a sqlite-backed store for
// confirmed meal entries and the small key-value table holding client-side
// preferences such as the preferred camera device.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/craigvandotcom/eatzone/internal/models"
)

// ErrNotFound is returned when an entry id does not exist.
var ErrNotFound = errors.New("entry not found")

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS entries (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        notes TEXT NOT NULL DEFAULT '',
        timestamp DATETIME NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS ingredients (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        entry_id TEXT NOT NULL,
        name TEXT NOT NULL,
        zone TEXT NOT NULL,
        organic INTEGER NOT NULL,
        from_ai INTEGER NOT NULL,
        FOREIGN KEY (entry_id) REFERENCES entries(id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS preferences (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON entries(timestamp);
    CREATE INDEX IF NOT EXISTS idx_ingredients_entry_id ON ingredients(entry_id);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveEntry persists one entry and its ingredients atomically. Image
// payloads are ephemeral and deliberately not stored.
func (s *Store) SaveEntry(ctx context.Context, entry *models.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entries (id, name, notes, timestamp, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Name, entry.Notes, entry.Timestamp, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	for _, ing := range entry.Ingredients {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ingredients (entry_id, name, zone, organic, from_ai) VALUES (?, ?, ?, ?, ?)`,
			entry.ID, ing.Name, string(ing.Zone), ing.Organic, ing.FromAI,
		); err != nil {
			return fmt.Errorf("failed to insert ingredient: %w", err)
		}
	}

	return tx.Commit()
}

// GetEntry loads one entry with its ingredients.
func (s *Store) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	entry := &models.Entry{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, notes, timestamp, created_at FROM entries WHERE id = ?`, id,
	).Scan(&entry.Name, &entry.Notes, &entry.Timestamp, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry: %w", err)
	}

	if err := s.loadIngredients(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntries returns entries newest-first, up to limit (0 means all).
func (s *Store) ListEntries(ctx context.Context, limit int) ([]*models.Entry, error) {
	query := `SELECT id, name, notes, timestamp, created_at FROM entries ORDER BY timestamp DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		entry := &models.Entry{}
		if err := rows.Scan(&entry.ID, &entry.Name, &entry.Notes, &entry.Timestamp, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if err := s.loadIngredients(ctx, entry); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// DeleteEntry removes an entry and its ingredients.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM ingredients WHERE entry_id = ?`, id)
	return err
}

func (s *Store) loadIngredients(ctx context.Context, entry *models.Entry) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, zone, organic, from_ai FROM ingredients WHERE entry_id = ? ORDER BY id`, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to load ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ing models.Ingredient
		var zone string
		if err := rows.Scan(&ing.Name, &zone, &ing.Organic, &ing.FromAI); err != nil {
			return fmt.Errorf("failed to scan ingredient: %w", err)
		}
		ing.Zone = models.Zone(zone)
		entry.Ingredients = append(entry.Ingredients, ing)
	}
	return rows.Err()
}

// Get reads one preference value. A missing key is not an error.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read preference: %w", err)
	}
	return value, true, nil
}

// Set writes one preference value, replacing any previous one.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO preferences (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write preference: %w", err)
	}
	return nil
}
