package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/models"
)

// batchChunkSize bounds the IN-list per query; SQLite's parameter limit is
// 999 by default.
const batchChunkSize = 500

// EntityStorage persists the per-kind mirrored rows. Per-kind upserts live in
// the kind-grouped files alongside; this file carries the generic operations.
type EntityStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

func NewEntityStorage(db *SQLiteDB, logger arbor.ILogger) *EntityStorage {
	return &EntityStorage{db: db, logger: logger}
}

// Delete removes a tombstoned row, reporting whether one existed. Dependent
// rows go with it via the FK cascade rules.
func (s *EntityStorage) Delete(ctx context.Context, kind models.EntityKind, externalID string) (bool, error) {
	table, ok := entityTables[kind]
	if !ok {
		return false, fmt.Errorf("unknown entity kind %q", kind)
	}

	result, err := s.db.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE external_id = ?", table), externalID)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", kind, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// BatchExists maps each present external id to its stored oparl_modified
// (nil when the column is NULL). Absent ids are missing from the map.
func (s *EntityStorage) BatchExists(ctx context.Context, kind models.EntityKind, externalIDs []string) (map[string]*time.Time, error) {
	table, ok := entityTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	found := make(map[string]*time.Time, len(externalIDs))
	for start := 0; start < len(externalIDs); start += batchChunkSize {
		end := start + batchChunkSize
		if end > len(externalIDs) {
			end = len(externalIDs)
		}
		chunk := externalIDs[start:end]

		placeholders := strings.Repeat("?,", len(chunk)-1) + "?"
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		query := fmt.Sprintf(
			"SELECT external_id, oparl_modified FROM %s WHERE external_id IN (%s)",
			table, placeholders)
		rows, err := s.db.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to batch-check %s: %w", kind, err)
		}

		for rows.Next() {
			var externalID string
			var modified sql.NullString
			if err := rows.Scan(&externalID, &modified); err != nil {
				rows.Close()
				return nil, err
			}
			found[externalID] = parseTimeText(modified)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return found, nil
}

// LookupID resolves an external id to its surrogate id. This is the
// authoritative absence check behind the identity cache.
func (s *EntityStorage) LookupID(ctx context.Context, kind models.EntityKind, externalID string) (string, error) {
	table, ok := entityTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown entity kind %q", kind)
	}

	var id string
	err := s.db.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE external_id = ?", table), externalID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", interfaces.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up %s: %w", kind, err)
	}
	return id, nil
}

// SetMeetingLocation links a meeting to its embedded location row. Needed
// because the meeting upserts before its nested location exists.
func (s *EntityStorage) SetMeetingLocation(ctx context.Context, meetingID, locationID string) error {
	_, err := s.db.db.ExecContext(ctx,
		"UPDATE meetings SET location_id = ?, updated_at = ? WHERE id = ?",
		locationID, nowText(), meetingID)
	if err != nil {
		return fmt.Errorf("failed to set meeting location: %w", err)
	}
	return nil
}

// Counts returns the row count per mirrored kind
func (s *EntityStorage) Counts(ctx context.Context) (map[models.EntityKind]int, error) {
	counts := make(map[models.EntityKind]int, len(entityTables))
	for kind, table := range entityTables {
		var count int
		err := s.db.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", kind, err)
		}
		counts[kind] = count
	}
	return counts, nil
}

// GetFile reads back a file row by external id
func (s *EntityStorage) GetFile(ctx context.Context, externalID string) (*models.FileRow, error) {
	query := `
	SELECT id, body_id, external_id, paper_id, meeting_id, file_name, mime_type,
		size, access_url, download_url, oparl_created, oparl_modified, raw_json, updated_at
	FROM files WHERE external_id = ?`

	var row models.FileRow
	var paperID, meetingID, fileName, mimeType, accessURL, downloadURL sql.NullString
	var oparlCreated, oparlModified, rawJSON, updatedAt sql.NullString

	err := s.db.db.QueryRowContext(ctx, query, externalID).Scan(
		&row.ID, &row.BodyID, &row.ExternalID, &paperID, &meetingID,
		&fileName, &mimeType, &row.Size, &accessURL, &downloadURL,
		&oparlCreated, &oparlModified, &rawJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	row.PaperID = strPtr(paperID)
	row.MeetingID = strPtr(meetingID)
	row.FileName = nullStr(fileName)
	row.MimeType = nullStr(mimeType)
	row.AccessURL = nullStr(accessURL)
	row.DownloadURL = nullStr(downloadURL)
	fillEntityRow(&row.EntityRow, oparlCreated, oparlModified, rawJSON, updatedAt)
	return &row, nil
}

// GetMeeting reads back a meeting row by external id
func (s *EntityStorage) GetMeeting(ctx context.Context, externalID string) (*models.MeetingRow, error) {
	query := `
	SELECT id, body_id, external_id, name, meeting_state, cancelled, location_id,
		start_time, end_time, oparl_created, oparl_modified, raw_json, updated_at
	FROM meetings WHERE external_id = ?`

	var row models.MeetingRow
	var name, meetingState, locationID, startTime, endTime sql.NullString
	var oparlCreated, oparlModified, rawJSON, updatedAt sql.NullString

	err := s.db.db.QueryRowContext(ctx, query, externalID).Scan(
		&row.ID, &row.BodyID, &row.ExternalID, &name, &meetingState,
		&row.Cancelled, &locationID, &startTime, &endTime,
		&oparlCreated, &oparlModified, &rawJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}

	row.Name = nullStr(name)
	row.MeetingState = nullStr(meetingState)
	row.LocationID = strPtr(locationID)
	row.Start = parseTimeText(startTime)
	row.End = parseTimeText(endTime)
	fillEntityRow(&row.EntityRow, oparlCreated, oparlModified, rawJSON, updatedAt)
	return &row, nil
}

// GetMembership reads back a membership row by external id
func (s *EntityStorage) GetMembership(ctx context.Context, externalID string) (*models.MembershipRow, error) {
	query := `
	SELECT id, body_id, external_id, person_id, organization_id, role, voting_right,
		oparl_created, oparl_modified, raw_json, updated_at
	FROM memberships WHERE external_id = ?`

	var row models.MembershipRow
	var role sql.NullString
	var oparlCreated, oparlModified, rawJSON, updatedAt sql.NullString

	err := s.db.db.QueryRowContext(ctx, query, externalID).Scan(
		&row.ID, &row.BodyID, &row.ExternalID, &row.PersonID, &row.OrganizationID,
		&role, &row.VotingRight, &oparlCreated, &oparlModified, &rawJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	row.Role = nullStr(role)
	fillEntityRow(&row.EntityRow, oparlCreated, oparlModified, rawJSON, updatedAt)
	return &row, nil
}

func fillEntityRow(row *models.EntityRow, oparlCreated, oparlModified, rawJSON, updatedAt sql.NullString) {
	row.OparlCreated = parseTimeText(oparlCreated)
	row.OparlModified = parseTimeText(oparlModified)
	if rawJSON.Valid {
		row.RawJSON = []byte(rawJSON.String)
	}
	if t := parseTimeText(updatedAt); t != nil {
		row.UpdatedAt = *t
	}
}
