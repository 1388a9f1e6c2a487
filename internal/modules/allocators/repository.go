package allocators

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/strategy"
)

// Schema creates the allocators table.
const Schema = `
CREATE TABLE IF NOT EXISTS allocators (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	strategy TEXT NOT NULL,
	config TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_allocators_created_at ON allocators(created_at);
`

// Repository stores allocator definitions in allocators.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a repository over db.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "allocators").Logger(),
	}
}

// Create inserts a record.
func (r *Repository) Create(rec Record) error {
	cfg := rec.Config
	if cfg == nil {
		cfg = strategy.Config{}
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config for allocator %s: %w", rec.ID, err)
	}

	_, err = r.db.Exec(`
		INSERT INTO allocators (id, name, strategy, config, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, rec.Strategy, string(cfgJSON), rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert allocator %s: %w", rec.ID, err)
	}
	return nil
}

// GetByID returns the record, or nil if it does not exist.
func (r *Repository) GetByID(id string) (*Record, error) {
	row := r.db.QueryRow(`
		SELECT id, name, strategy, config, created_at
		FROM allocators
		WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get allocator %s: %w", id, err)
	}
	return rec, nil
}

// List returns all records, oldest first.
func (r *Repository) List() ([]Record, error) {
	rows, err := r.db.Query(`
		SELECT id, name, strategy, config, created_at
		FROM allocators
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocators: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan allocator row")
			continue
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocators: %w", err)
	}
	return records, nil
}

// Delete removes a record and reports whether it existed.
func (r *Repository) Delete(id string) (bool, error) {
	result, err := r.db.Exec("DELETE FROM allocators WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete allocator %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec       Record
		cfgJSON   string
		createdAt int64
	)
	if err := s.Scan(&rec.ID, &rec.Name, &rec.Strategy, &cfgJSON, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfgJSON), &rec.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config of allocator %s: %w", rec.ID, err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &rec, nil
}
