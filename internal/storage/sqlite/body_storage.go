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

// BodyStorage persists OParl bodies
type BodyStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

func NewBodyStorage(db *SQLiteDB, logger arbor.ILogger) *BodyStorage {
	return &BodyStorage{db: db, logger: logger}
}

// UpsertBody writes a body row keyed on its external id and returns the
// surrogate id. Rows keep their surrogate id across re-syncs.
func (s *BodyStorage) UpsertBody(ctx context.Context, sourceID string, entity *models.ProcessedEntity) (string, error) {
	if entity.Body == nil {
		return "", fmt.Errorf("entity %s has no body content", entity.ExternalID)
	}

	content := entity.Body
	now := nowText()
	query := `
	INSERT INTO oparl_bodies (
		id, source_id, external_id, name, short_name, website,
		organization_url, person_url, membership_url, meeting_url, paper_url,
		agenda_item_url, file_url, location_url, consultation_url, legislative_term_url,
		oparl_created, oparl_modified, raw_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		source_id = excluded.source_id,
		name = excluded.name,
		short_name = excluded.short_name,
		website = excluded.website,
		organization_url = excluded.organization_url,
		person_url = excluded.person_url,
		membership_url = excluded.membership_url,
		meeting_url = excluded.meeting_url,
		paper_url = excluded.paper_url,
		agenda_item_url = excluded.agenda_item_url,
		file_url = excluded.file_url,
		location_url = excluded.location_url,
		consultation_url = excluded.consultation_url,
		legislative_term_url = excluded.legislative_term_url,
		oparl_created = excluded.oparl_created,
		oparl_modified = excluded.oparl_modified,
		raw_json = excluded.raw_json,
		updated_at = excluded.updated_at
	RETURNING id`

	var id string
	err := s.db.db.QueryRowContext(ctx, query,
		common.NewSurrogateID(), sourceID, entity.ExternalID,
		content.Name, content.ShortName, content.Website,
		content.Lists.Organization, content.Lists.Person, content.Lists.Membership,
		content.Lists.Meeting, content.Lists.Paper, content.Lists.AgendaItem,
		content.Lists.File, content.Lists.Location, content.Lists.Consultation,
		content.Lists.LegislativeTerm,
		timeText(entity.Created), timeText(entity.Modified),
		[]byte(entity.RawJSON), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert body: %w", err)
	}
	return id, nil
}

// GetBody fetches a body by external id
func (s *BodyStorage) GetBody(ctx context.Context, externalID string) (*models.Body, error) {
	body, err := s.scanBodyRow(s.db.db.QueryRowContext(ctx,
		bodySelectQuery+" WHERE external_id = ?", externalID))
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get body: %w", err)
	}
	return body, nil
}

// ListBodies returns all bodies of a source ordered by external id
func (s *BodyStorage) ListBodies(ctx context.Context, sourceID string) ([]*models.Body, error) {
	rows, err := s.db.db.QueryContext(ctx,
		bodySelectQuery+" WHERE source_id = ? ORDER BY external_id", sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bodies: %w", err)
	}
	defer rows.Close()

	var bodies []*models.Body
	for rows.Next() {
		body, err := s.scanBodyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan body: %w", err)
		}
		bodies = append(bodies, body)
	}
	return bodies, rows.Err()
}

// UpdateBodySyncTime records the per-body sync high-water mark
func (s *BodyStorage) UpdateBodySyncTime(ctx context.Context, bodyID string, at time.Time) error {
	_, err := s.db.db.ExecContext(ctx,
		"UPDATE oparl_bodies SET last_sync = ?, updated_at = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339Nano), nowText(), bodyID)
	if err != nil {
		return fmt.Errorf("failed to update body sync time: %w", err)
	}
	return nil
}

const bodySelectQuery = `
	SELECT id, source_id, external_id, name, short_name, website,
		organization_url, person_url, membership_url, meeting_url, paper_url,
		agenda_item_url, file_url, location_url, consultation_url, legislative_term_url,
		oparl_created, oparl_modified, raw_json, last_sync, created_at, updated_at
	FROM oparl_bodies`

func (s *BodyStorage) scanBodyRow(row rowScanner) (*models.Body, error) {
	var body models.Body
	var name, shortName, website sql.NullString
	var orgURL, personURL, membershipURL, meetingURL, paperURL sql.NullString
	var agendaItemURL, fileURL, locationURL, consultationURL, termURL sql.NullString
	var oparlCreated, oparlModified, rawJSON, lastSync, createdAt, updatedAt sql.NullString

	err := row.Scan(&body.ID, &body.SourceID, &body.ExternalID,
		&name, &shortName, &website,
		&orgURL, &personURL, &membershipURL, &meetingURL, &paperURL,
		&agendaItemURL, &fileURL, &locationURL, &consultationURL, &termURL,
		&oparlCreated, &oparlModified, &rawJSON, &lastSync, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	body.Name = nullStr(name)
	body.ShortName = nullStr(shortName)
	body.Website = nullStr(website)
	body.Lists = models.BodyLists{
		Organization:    nullStr(orgURL),
		Person:          nullStr(personURL),
		Membership:      nullStr(membershipURL),
		Meeting:         nullStr(meetingURL),
		Paper:           nullStr(paperURL),
		AgendaItem:      nullStr(agendaItemURL),
		File:            nullStr(fileURL),
		Location:        nullStr(locationURL),
		Consultation:    nullStr(consultationURL),
		LegislativeTerm: nullStr(termURL),
	}
	body.OparlCreated = parseTimeText(oparlCreated)
	body.OparlModified = parseTimeText(oparlModified)
	if rawJSON.Valid {
		body.RawJSON = []byte(rawJSON.String)
	}
	body.LastSync = parseTimeText(lastSync)
	if t := parseTimeText(createdAt); t != nil {
		body.CreatedAt = *t
	}
	if t := parseTimeText(updatedAt); t != nil {
		body.UpdatedAt = *t
	}
	return &body, nil
}
