package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate runs database migrations. Only the migrate command calls this; the
// sync engine itself never issues DDL.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	if err := s.createMigrationsTable(ctx); err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "initial_schema", up: migrateV1},
		{version: 2, name: "entity_indexes", up: migrateV2},
	}

	for _, m := range migrations {
		if err := s.runMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}

	return nil
}

type migration struct {
	version int
	name    string
	up      func(context.Context, *sql.Tx) error
}

func (s *SQLiteDB) createMigrationsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *SQLiteDB) runMigration(ctx context.Context, m migration) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.version).Scan(&count)
	if err != nil {
		return err
	}

	if count > 0 {
		return nil // Already applied
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, strftime('%s', 'now'))",
		m.version, m.name)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// migrateV1 creates the mirror schema: one table per OParl kind. All
// timestamps are RFC3339 UTC text; surrogate ids are UUIDs assigned by the
// store; external ids are the upstream URLs and uniquely key each kind.
func migrateV1(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS oparl_sources (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			name TEXT,
			raw_json JSON,
			last_sync TEXT,
			last_full_sync TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS oparl_bodies (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL REFERENCES oparl_sources(id) ON DELETE CASCADE,
			external_id TEXT NOT NULL UNIQUE,
			name TEXT,
			short_name TEXT,
			website TEXT,
			organization_url TEXT,
			person_url TEXT,
			membership_url TEXT,
			meeting_url TEXT,
			paper_url TEXT,
			agenda_item_url TEXT,
			file_url TEXT,
			location_url TEXT,
			consultation_url TEXT,
			legislative_term_url TEXT,
			oparl_created TEXT,
			oparl_modified TEXT,
			raw_json JSON,
			last_sync TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS organizations (
			id TEXT PRIMARY KEY,
			body_id TEXT NOT NULL REFERENCES oparl_bodies(id) ON DELETE CASCADE,
			external_id TEXT NOT NULL UNIQUE,
			name TEXT,
			short_name TEXT,
			classification TEXT,
			organization_type TEXT,
			start_date TEXT,
			end_date TEXT,
			oparl_created TEXT,
			oparl_modified TEXT,
			raw_json JSON,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS persons (
			id TEXT PRIMARY KEY,
			body_id TEXT NOT NULL REFERENCES oparl_bodies(id) ON DELETE CASCADE,
			external_id TEXT NOT NULL UNIQUE,
			name TEXT,
			given_name TEXT,
			family_name TEXT,
			email TEXT,
			oparl_created TEXT,
			oparl_modified TEXT,
			raw_json JSON,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS memberships (
			id TEXT PRIMARY KEY,
			body_id TEXT NOT NULL REFERENCES oparl_bodies(id) ON DELETE CASCADE,
			external_id TEXT NOT NULL UNIQUE,
			person_id TEXT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
			organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			role TEXT,
			voting_right INTEGER NOT NULL DEFAULT 0,
			start_date TEXT,
			end_date TEXT,
			oparl_created TEXT,
			oparl_modified TEXT,
			raw_json JSON,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS locations (
			id TEXT PRIMARY KEY,
			body_id TEXT NOT NULL REFERENCES oparl_bodies(id) ON DELETE CASCADE,
			external_id TEXT NOT NULL UNIQUE,
			description TEXT,
			street_address TEXT,
			room TEXT,
			postal_code TEXT,
			locality TEXT,
			geojson JSON,
			oparl_created TEXT,
			oparl_modified TEXT,
			raw_json JSON,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS meetings (
			id TEXT PRIMARY KEY,
			body_id TEXT NOT NULL REFERENCES oparl_bodies(id) ON DELETE CASCADE,
			external_id TEXT NOT NULL UNIQUE,
			name TEXT,
			meeting_state TEXT,
			cancelled INTEGER NOT NULL DEFAULT 0,
			location_id TEXT REFERENCES locations(id) ON DELETE SET NULL,
			start_time TEXT,
			end_time TEXT,
			oparl_created TEXT,
			oparl_modified TEXT,
			raw_json JSON,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			body_id TEXT NOT NULL REFERENCES oparl_bodies(id) ON DELETE CASCADE,
			external_id TEXT NOT NULL UNIQUE,
			name TEXT,
			reference TEXT,
			paper_type TEXT,
			date TEXT,
			oparl_created TEXT,
			oparl_modified TEXT,
			raw_json JSON,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS agenda_items (
			id TEXT PRIMARY KEY,
			body_id TEXT NOT NULL REFERENCES oparl_bodies(id) ON DELETE CASCADE,
			external_id TEXT NOT NULL UNIQUE,
			meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
			number TEXT,
			item_order INTEGER NOT NULL DEFAULT 0,
			name TEXT,
			public INTEGER NOT NULL DEFAULT 1,
			result TEXT,
			oparl_created TEXT,
			oparl_modified TEXT,
			raw_json JSON,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS files (
			id TEXT PRIMARY KEY,
			body_id TEXT NOT NULL REFERENCES oparl_bodies(id) ON DELETE CASCADE,
			external_id TEXT NOT NULL UNIQUE,
			paper_id TEXT REFERENCES papers(id) ON DELETE SET NULL,
			meeting_id TEXT REFERENCES meetings(id) ON DELETE SET NULL,
			file_name TEXT,
			name TEXT,
			mime_type TEXT,
			size INTEGER NOT NULL DEFAULT 0,
			access_url TEXT,
			download_url TEXT,
			text_extraction_status TEXT NOT NULL DEFAULT 'pending',
			oparl_created TEXT,
			oparl_modified TEXT,
			raw_json JSON,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS consultations (
			id TEXT PRIMARY KEY,
			body_id TEXT NOT NULL REFERENCES oparl_bodies(id) ON DELETE CASCADE,
			external_id TEXT NOT NULL UNIQUE,
			paper_id TEXT REFERENCES papers(id) ON DELETE SET NULL,
			paper_external_id TEXT,
			meeting_external_id TEXT,
			agenda_item_external_id TEXT,
			role TEXT,
			authoritative INTEGER NOT NULL DEFAULT 0,
			oparl_created TEXT,
			oparl_modified TEXT,
			raw_json JSON,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS legislative_terms (
			id TEXT PRIMARY KEY,
			body_id TEXT NOT NULL REFERENCES oparl_bodies(id) ON DELETE CASCADE,
			external_id TEXT NOT NULL UNIQUE,
			name TEXT,
			start_date TEXT,
			end_date TEXT,
			oparl_created TEXT,
			oparl_modified TEXT,
			raw_json JSON,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	return nil
}

// migrateV2 adds the lookup indexes the pipelines depend on
func migrateV2(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE INDEX IF NOT EXISTS idx_bodies_source ON oparl_bodies(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_organizations_body ON organizations(body_id)`,
		`CREATE INDEX IF NOT EXISTS idx_persons_body ON persons(body_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_person ON memberships(person_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_organization ON memberships(organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_meetings_body ON meetings(body_id)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_body ON papers(body_id)`,
		`CREATE INDEX IF NOT EXISTS idx_agenda_items_meeting ON agenda_items(meeting_id)`,
		`CREATE INDEX IF NOT EXISTS idx_files_paper ON files(paper_id)`,
		`CREATE INDEX IF NOT EXISTS idx_files_meeting ON files(meeting_id)`,
		`CREATE INDEX IF NOT EXISTS idx_consultations_paper ON consultations(paper_id)`,
	}

	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	return nil
}
