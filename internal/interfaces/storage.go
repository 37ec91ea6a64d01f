package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/curia/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("row not found")

// ErrSchemaMissing is returned when the sentinel table is absent. The engine
// never migrates on its own; the operator must run `curia migrate` first.
var ErrSchemaMissing = errors.New("database schema missing: run `curia migrate` first")

// SourceStorage persists registered OParl endpoints
type SourceStorage interface {
	UpsertSource(ctx context.Context, url, name string, rawJSON []byte) (*models.Source, error)
	GetSource(ctx context.Context, url string) (*models.Source, error)
	ListSources(ctx context.Context) ([]*models.Source, error)

	// UpdateSourceSyncTime records the high-water mark after a source job;
	// full also advances last_full_sync.
	UpdateSourceSyncTime(ctx context.Context, sourceID string, at time.Time, full bool) error
}

// BodyStorage persists OParl bodies
type BodyStorage interface {
	UpsertBody(ctx context.Context, sourceID string, entity *models.ProcessedEntity) (string, error)
	GetBody(ctx context.Context, externalID string) (*models.Body, error)
	ListBodies(ctx context.Context, sourceID string) ([]*models.Body, error)
	UpdateBodySyncTime(ctx context.Context, bodyID string, at time.Time) error
}

// EntityStorage persists the per-kind mirrored rows. Every upsert is a single
// atomic insert-on-conflict-do-update keyed on the external id and returns
// the surrogate id. Parent FKs arrive pre-resolved; FK policy (skip vs NULL)
// is owned by the sync writer.
type EntityStorage interface {
	UpsertOrganization(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, error)
	UpsertPerson(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, error)
	UpsertMembership(ctx context.Context, personID, organizationID string, entity *models.ProcessedEntity) (string, error)
	UpsertMeeting(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, error)
	UpsertPaper(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, error)
	UpsertAgendaItem(ctx context.Context, meetingID string, entity *models.ProcessedEntity) (string, error)
	UpsertFile(ctx context.Context, bodyID string, paperID, meetingID *string, entity *models.ProcessedEntity) (string, error)
	UpsertLocation(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, error)
	UpsertConsultation(ctx context.Context, bodyID string, paperID *string, entity *models.ProcessedEntity) (string, error)
	UpsertLegislativeTerm(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, error)

	// SetMeetingLocation links a meeting to its embedded location row
	SetMeetingLocation(ctx context.Context, meetingID, locationID string) error

	// Delete removes a tombstoned row, reporting whether one existed
	Delete(ctx context.Context, kind models.EntityKind, externalID string) (bool, error)

	// BatchExists maps each present external id to its stored oparl_modified
	// (nil when the column is NULL). Absent ids are missing from the map.
	BatchExists(ctx context.Context, kind models.EntityKind, externalIDs []string) (map[string]*time.Time, error)

	// LookupID resolves an external id to its surrogate id, ErrNotFound when
	// absent. This is the authoritative absence check backing the identity
	// cache.
	LookupID(ctx context.Context, kind models.EntityKind, externalID string) (string, error)

	// Row readers used by status reporting and invariant checks
	GetFile(ctx context.Context, externalID string) (*models.FileRow, error)
	GetMeeting(ctx context.Context, externalID string) (*models.MeetingRow, error)
	GetMembership(ctx context.Context, externalID string) (*models.MembershipRow, error)
	Counts(ctx context.Context) (map[models.EntityKind]int, error)
}

// StorageManager bundles the storage interfaces behind one connection
type StorageManager interface {
	SourceStorage() SourceStorage
	BodyStorage() BodyStorage
	EntityStorage() EntityStorage
	Close() error
}
