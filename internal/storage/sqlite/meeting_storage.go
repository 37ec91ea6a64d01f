package sqlite

import (
	"context"
	"fmt"

	"github.com/ternarybob/curia/internal/common"
	"github.com/ternarybob/curia/internal/models"
)

// Upserts for meetings, agenda items and locations.

func (s *EntityStorage) UpsertMeeting(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, error) {
	if entity.Meeting == nil {
		return "", fmt.Errorf("entity %s has no meeting content", entity.ExternalID)
	}

	content := entity.Meeting
	now := nowText()

	// location_id is left alone on update; the sync writer links it via
	// SetMeetingLocation after the nested location row exists.
	query := `
	INSERT INTO meetings (
		id, body_id, external_id, name, meeting_state, cancelled, start_time, end_time,
		oparl_created, oparl_modified, raw_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		body_id = excluded.body_id,
		name = excluded.name,
		meeting_state = excluded.meeting_state,
		cancelled = excluded.cancelled,
		start_time = excluded.start_time,
		end_time = excluded.end_time,
		oparl_created = excluded.oparl_created,
		oparl_modified = excluded.oparl_modified,
		raw_json = excluded.raw_json,
		updated_at = excluded.updated_at
	RETURNING id`

	var id string
	err := s.db.db.QueryRowContext(ctx, query,
		common.NewSurrogateID(), bodyID, entity.ExternalID,
		content.Name, content.MeetingState, content.Cancelled,
		timeText(content.Start), timeText(content.End),
		timeText(entity.Created), timeText(entity.Modified),
		[]byte(entity.RawJSON), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert meeting: %w", err)
	}
	return id, nil
}

// UpsertAgendaItem requires the meeting FK pre-resolved; the sync writer
// skips the row when the meeting is unknown. body_id is derived from the
// meeting row.
func (s *EntityStorage) UpsertAgendaItem(ctx context.Context, meetingID string, entity *models.ProcessedEntity) (string, error) {
	if entity.AgendaItem == nil {
		return "", fmt.Errorf("entity %s has no agenda item content", entity.ExternalID)
	}

	content := entity.AgendaItem
	now := nowText()
	query := `
	INSERT INTO agenda_items (
		id, body_id, external_id, meeting_id, number, item_order, name, public, result,
		oparl_created, oparl_modified, raw_json, created_at, updated_at
	) VALUES (?, (SELECT body_id FROM meetings WHERE id = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		meeting_id = excluded.meeting_id,
		number = excluded.number,
		item_order = excluded.item_order,
		name = excluded.name,
		public = excluded.public,
		result = excluded.result,
		oparl_created = excluded.oparl_created,
		oparl_modified = excluded.oparl_modified,
		raw_json = excluded.raw_json,
		updated_at = excluded.updated_at
	RETURNING id`

	var id string
	err := s.db.db.QueryRowContext(ctx, query,
		common.NewSurrogateID(), meetingID, entity.ExternalID,
		meetingID, content.Number, content.Order, content.Name, content.Public, content.Result,
		timeText(entity.Created), timeText(entity.Modified),
		[]byte(entity.RawJSON), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert agenda item: %w", err)
	}
	return id, nil
}

func (s *EntityStorage) UpsertLocation(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, error) {
	if entity.Location == nil {
		return "", fmt.Errorf("entity %s has no location content", entity.ExternalID)
	}

	content := entity.Location
	now := nowText()
	query := `
	INSERT INTO locations (
		id, body_id, external_id, description, street_address, room, postal_code,
		locality, geojson, oparl_created, oparl_modified, raw_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		body_id = excluded.body_id,
		description = excluded.description,
		street_address = excluded.street_address,
		room = excluded.room,
		postal_code = excluded.postal_code,
		locality = excluded.locality,
		geojson = excluded.geojson,
		oparl_created = excluded.oparl_created,
		oparl_modified = excluded.oparl_modified,
		raw_json = excluded.raw_json,
		updated_at = excluded.updated_at
	RETURNING id`

	var geojson any
	if len(content.GeoJSON) > 0 {
		geojson = []byte(content.GeoJSON)
	}

	var id string
	err := s.db.db.QueryRowContext(ctx, query,
		common.NewSurrogateID(), bodyID, entity.ExternalID,
		content.Description, content.StreetAddress, content.Room, content.PostalCode,
		content.Locality, geojson,
		timeText(entity.Created), timeText(entity.Modified),
		[]byte(entity.RawJSON), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert location: %w", err)
	}
	return id, nil
}
