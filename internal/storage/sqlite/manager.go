package sqlite

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curia/internal/common"
	"github.com/ternarybob/curia/internal/interfaces"
)

// Manager bundles the SQLite-backed storages behind one connection
type Manager struct {
	db     *SQLiteDB
	source *SourceStorage
	body   *BodyStorage
	entity *EntityStorage
}

// NewManager opens the database and verifies the schema sentinel. It fails
// with ErrSchemaMissing on an unmigrated database; only the migrate command
// issues DDL.
func NewManager(ctx context.Context, logger arbor.ILogger, config *common.SQLiteConfig) (*Manager, error) {
	db, err := NewSQLiteDB(logger, config)
	if err != nil {
		return nil, err
	}

	if err := db.VerifySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return newManager(db, logger), nil
}

// NewMigratedManager opens the database and runs migrations before handing
// out storages. Used by the migrate command and by tests.
func NewMigratedManager(ctx context.Context, logger arbor.ILogger, config *common.SQLiteConfig) (*Manager, error) {
	db, err := NewSQLiteDB(logger, config)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return newManager(db, logger), nil
}

func newManager(db *SQLiteDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:     db,
		source: NewSourceStorage(db, logger),
		body:   NewBodyStorage(db, logger),
		entity: NewEntityStorage(db, logger),
	}
}

func (m *Manager) SourceStorage() interfaces.SourceStorage {
	return m.source
}

func (m *Manager) BodyStorage() interfaces.BodyStorage {
	return m.body
}

func (m *Manager) EntityStorage() interfaces.EntityStorage {
	return m.entity
}

// DB exposes the underlying connection for the migrate command
func (m *Manager) DB() *SQLiteDB {
	return m.db
}

func (m *Manager) Close() error {
	return m.db.Close()
}
