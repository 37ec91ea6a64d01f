package sqlite

import (
	"context"
	"fmt"

	"github.com/ternarybob/curia/internal/common"
	"github.com/ternarybob/curia/internal/models"
)

// Upserts for papers, files and consultations.

func (s *EntityStorage) UpsertPaper(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, error) {
	if entity.Paper == nil {
		return "", fmt.Errorf("entity %s has no paper content", entity.ExternalID)
	}

	content := entity.Paper
	now := nowText()
	query := `
	INSERT INTO papers (
		id, body_id, external_id, name, reference, paper_type, date,
		oparl_created, oparl_modified, raw_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		body_id = excluded.body_id,
		name = excluded.name,
		reference = excluded.reference,
		paper_type = excluded.paper_type,
		date = excluded.date,
		oparl_created = excluded.oparl_created,
		oparl_modified = excluded.oparl_modified,
		raw_json = excluded.raw_json,
		updated_at = excluded.updated_at
	RETURNING id`

	var id string
	err := s.db.db.QueryRowContext(ctx, query,
		common.NewSurrogateID(), bodyID, entity.ExternalID,
		content.Name, content.Reference, content.PaperType, content.Date,
		timeText(entity.Created), timeText(entity.Modified),
		[]byte(entity.RawJSON), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert paper: %w", err)
	}
	return id, nil
}

// UpsertFile never clobbers an established back-reference with NULL: a file
// reached via its meeting keeps the paper_id a paper-side visit set earlier,
// and vice versa.
func (s *EntityStorage) UpsertFile(ctx context.Context, bodyID string, paperID, meetingID *string, entity *models.ProcessedEntity) (string, error) {
	if entity.File == nil {
		return "", fmt.Errorf("entity %s has no file content", entity.ExternalID)
	}

	content := entity.File
	now := nowText()
	query := `
	INSERT INTO files (
		id, body_id, external_id, paper_id, meeting_id, file_name, name, mime_type,
		size, access_url, download_url, oparl_created, oparl_modified, raw_json,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		body_id = excluded.body_id,
		paper_id = COALESCE(excluded.paper_id, files.paper_id),
		meeting_id = COALESCE(excluded.meeting_id, files.meeting_id),
		file_name = excluded.file_name,
		name = excluded.name,
		mime_type = excluded.mime_type,
		size = excluded.size,
		access_url = excluded.access_url,
		download_url = excluded.download_url,
		oparl_created = excluded.oparl_created,
		oparl_modified = excluded.oparl_modified,
		raw_json = excluded.raw_json,
		updated_at = excluded.updated_at
	RETURNING id`

	var id string
	err := s.db.db.QueryRowContext(ctx, query,
		common.NewSurrogateID(), bodyID, entity.ExternalID, paperID, meetingID,
		content.FileName, content.Name, content.MimeType,
		content.Size, content.AccessURL, content.DownloadURL,
		timeText(entity.Created), timeText(entity.Modified),
		[]byte(entity.RawJSON), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert file: %w", err)
	}
	return id, nil
}

// UpsertConsultation writes the best-effort paper FK plus the raw external
// ids, so unresolved references stay queryable.
func (s *EntityStorage) UpsertConsultation(ctx context.Context, bodyID string, paperID *string, entity *models.ProcessedEntity) (string, error) {
	if entity.Consultation == nil {
		return "", fmt.Errorf("entity %s has no consultation content", entity.ExternalID)
	}

	content := entity.Consultation
	now := nowText()
	query := `
	INSERT INTO consultations (
		id, body_id, external_id, paper_id, paper_external_id, meeting_external_id,
		agenda_item_external_id, role, authoritative,
		oparl_created, oparl_modified, raw_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		body_id = excluded.body_id,
		paper_id = COALESCE(excluded.paper_id, consultations.paper_id),
		paper_external_id = excluded.paper_external_id,
		meeting_external_id = excluded.meeting_external_id,
		agenda_item_external_id = excluded.agenda_item_external_id,
		role = excluded.role,
		authoritative = excluded.authoritative,
		oparl_created = excluded.oparl_created,
		oparl_modified = excluded.oparl_modified,
		raw_json = excluded.raw_json,
		updated_at = excluded.updated_at
	RETURNING id`

	var id string
	err := s.db.db.QueryRowContext(ctx, query,
		common.NewSurrogateID(), bodyID, entity.ExternalID, paperID,
		content.PaperExternalID, content.MeetingExternalID, content.AgendaItemExternalID,
		content.Role, content.Authoritative,
		timeText(entity.Created), timeText(entity.Modified),
		[]byte(entity.RawJSON), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert consultation: %w", err)
	}
	return id, nil
}
