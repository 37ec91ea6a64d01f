package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curia/internal/common"
	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/models"
)

// SourceStorage persists registered OParl endpoints
type SourceStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

func NewSourceStorage(db *SQLiteDB, logger arbor.ILogger) *SourceStorage {
	return &SourceStorage{db: db, logger: logger}
}

// UpsertSource registers an endpoint by URL, refreshing name and the cached
// System document when it already exists.
func (s *SourceStorage) UpsertSource(ctx context.Context, url, name string, rawJSON []byte) (*models.Source, error) {
	now := nowText()
	query := `
	INSERT INTO oparl_sources (id, url, name, raw_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		name = excluded.name,
		raw_json = excluded.raw_json,
		updated_at = excluded.updated_at`

	_, err := s.db.db.ExecContext(ctx, query,
		common.NewSurrogateID(), url, name, rawJSON, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert source: %w", err)
	}

	return s.GetSource(ctx, url)
}

// GetSource fetches a source by URL
func (s *SourceStorage) GetSource(ctx context.Context, url string) (*models.Source, error) {
	query := `
	SELECT id, url, name, raw_json, last_sync, last_full_sync, created_at, updated_at
	FROM oparl_sources WHERE url = ?`

	source, err := scanSource(s.db.db.QueryRowContext(ctx, query, url))
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return source, nil
}

// ListSources returns all registered sources ordered by URL
func (s *SourceStorage) ListSources(ctx context.Context) ([]*models.Source, error) {
	query := `
	SELECT id, url, name, raw_json, last_sync, last_full_sync, created_at, updated_at
	FROM oparl_sources ORDER BY url`

	rows, err := s.db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []*models.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// UpdateSourceSyncTime records the sync high-water mark; full also advances
// last_full_sync.
func (s *SourceStorage) UpdateSourceSyncTime(ctx context.Context, sourceID string, at time.Time, full bool) error {
	atText := at.UTC().Format(time.RFC3339Nano)

	var err error
	if full {
		_, err = s.db.db.ExecContext(ctx,
			"UPDATE oparl_sources SET last_sync = ?, last_full_sync = ?, updated_at = ? WHERE id = ?",
			atText, atText, nowText(), sourceID)
	} else {
		_, err = s.db.db.ExecContext(ctx,
			"UPDATE oparl_sources SET last_sync = ?, updated_at = ? WHERE id = ?",
			atText, nowText(), sourceID)
	}
	if err != nil {
		return fmt.Errorf("failed to update source sync time: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*models.Source, error) {
	var source models.Source
	var name, rawJSON, lastSync, lastFullSync, createdAt, updatedAt sql.NullString

	err := row.Scan(&source.ID, &source.URL, &name, &rawJSON,
		&lastSync, &lastFullSync, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	source.Name = nullStr(name)
	if rawJSON.Valid {
		source.RawJSON = []byte(rawJSON.String)
	}
	source.LastSync = parseTimeText(lastSync)
	source.LastFullSync = parseTimeText(lastFullSync)
	if t := parseTimeText(createdAt); t != nil {
		source.CreatedAt = *t
	}
	if t := parseTimeText(updatedAt); t != nil {
		source.UpdatedAt = *t
	}
	return &source, nil
}
