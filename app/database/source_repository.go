package database

import (
	"database/sql"
	"fmt"
	"time"
)

type sourceRepository struct {
	db *DB
}

var _ SourceRepository = (*sourceRepository)(nil)

func NewSourceRepository(db *DB) SourceRepository {
	return &sourceRepository{db: db}
}

func (r *sourceRepository) GetSource(name string) (*Source, error) {
	var source Source
	err := r.db.QueryRow(`
		SELECT name, url, category, last_fetched_at, next_fetch_at, created_at, updated_at
		FROM sources
		WHERE name = ?
	`, name).Scan(&source.Name, &source.URL, &source.Category,
		&source.LastFetchedAt, &source.NextFetchAt, &source.CreatedAt, &source.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return &source, nil
}

func (r *sourceRepository) GetSourceCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sources`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

// UpsertSource registers a configured source, updating url and category
// when the config changed. Fetch bookkeeping columns are left untouched.
func (r *sourceRepository) UpsertSource(name, url, category string) error {
	_, err := r.db.Exec(`
		INSERT INTO sources (name, url, category, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			url = excluded.url,
			category = excluded.category,
			updated_at = excluded.updated_at
	`, name, url, category, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

// UpdateNextFetch records a completed fetch and schedules the next one.
func (r *sourceRepository) UpdateNextFetch(name string, nextFetch time.Time) error {
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		UPDATE sources
		SET last_fetched_at = ?, next_fetch_at = ?, updated_at = ?
		WHERE name = ?
	`, now, nextFetch.UTC(), now, name)
	if err != nil {
		return fmt.Errorf("failed to update source fetch schedule: %w", err)
	}
	return nil
}
