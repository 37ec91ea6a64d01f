package sqlite

import (
	"context"
	"fmt"

	"github.com/ternarybob/curia/internal/common"
	"github.com/ternarybob/curia/internal/models"
)

// Upserts for organizations, persons, memberships and legislative terms.
// Each is a single atomic insert-on-conflict keyed on external_id and returns
// the surrogate id, which stays stable across re-syncs.

func (s *EntityStorage) UpsertOrganization(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, error) {
	if entity.Organization == nil {
		return "", fmt.Errorf("entity %s has no organization content", entity.ExternalID)
	}

	content := entity.Organization
	now := nowText()
	query := `
	INSERT INTO organizations (
		id, body_id, external_id, name, short_name, classification, organization_type,
		start_date, end_date, oparl_created, oparl_modified, raw_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		body_id = excluded.body_id,
		name = excluded.name,
		short_name = excluded.short_name,
		classification = excluded.classification,
		organization_type = excluded.organization_type,
		start_date = excluded.start_date,
		end_date = excluded.end_date,
		oparl_created = excluded.oparl_created,
		oparl_modified = excluded.oparl_modified,
		raw_json = excluded.raw_json,
		updated_at = excluded.updated_at
	RETURNING id`

	var id string
	err := s.db.db.QueryRowContext(ctx, query,
		common.NewSurrogateID(), bodyID, entity.ExternalID,
		content.Name, content.ShortName, content.Classification, content.OrganizationType,
		content.StartDate, content.EndDate,
		timeText(entity.Created), timeText(entity.Modified),
		[]byte(entity.RawJSON), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert organization: %w", err)
	}
	return id, nil
}

func (s *EntityStorage) UpsertPerson(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, error) {
	if entity.Person == nil {
		return "", fmt.Errorf("entity %s has no person content", entity.ExternalID)
	}

	content := entity.Person
	now := nowText()
	query := `
	INSERT INTO persons (
		id, body_id, external_id, name, given_name, family_name, email,
		oparl_created, oparl_modified, raw_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		body_id = excluded.body_id,
		name = excluded.name,
		given_name = excluded.given_name,
		family_name = excluded.family_name,
		email = excluded.email,
		oparl_created = excluded.oparl_created,
		oparl_modified = excluded.oparl_modified,
		raw_json = excluded.raw_json,
		updated_at = excluded.updated_at
	RETURNING id`

	var id string
	err := s.db.db.QueryRowContext(ctx, query,
		common.NewSurrogateID(), bodyID, entity.ExternalID,
		content.Name, content.GivenName, content.FamilyName, content.Email,
		timeText(entity.Created), timeText(entity.Modified),
		[]byte(entity.RawJSON), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert person: %w", err)
	}
	return id, nil
}

// UpsertMembership requires both FKs pre-resolved; the sync writer skips the
// row when either side is missing. body_id is derived from the person row.
func (s *EntityStorage) UpsertMembership(ctx context.Context, personID, organizationID string, entity *models.ProcessedEntity) (string, error) {
	if entity.Membership == nil {
		return "", fmt.Errorf("entity %s has no membership content", entity.ExternalID)
	}

	content := entity.Membership
	now := nowText()
	query := `
	INSERT INTO memberships (
		id, body_id, external_id, person_id, organization_id, role, voting_right,
		start_date, end_date, oparl_created, oparl_modified, raw_json, created_at, updated_at
	) VALUES (?, (SELECT body_id FROM persons WHERE id = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		person_id = excluded.person_id,
		organization_id = excluded.organization_id,
		role = excluded.role,
		voting_right = excluded.voting_right,
		start_date = excluded.start_date,
		end_date = excluded.end_date,
		oparl_created = excluded.oparl_created,
		oparl_modified = excluded.oparl_modified,
		raw_json = excluded.raw_json,
		updated_at = excluded.updated_at
	RETURNING id`

	var id string
	err := s.db.db.QueryRowContext(ctx, query,
		common.NewSurrogateID(), personID, entity.ExternalID,
		personID, organizationID, content.Role, content.VotingRight,
		content.StartDate, content.EndDate,
		timeText(entity.Created), timeText(entity.Modified),
		[]byte(entity.RawJSON), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert membership: %w", err)
	}
	return id, nil
}

func (s *EntityStorage) UpsertLegislativeTerm(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, error) {
	if entity.LegislativeTerm == nil {
		return "", fmt.Errorf("entity %s has no legislative term content", entity.ExternalID)
	}

	content := entity.LegislativeTerm
	now := nowText()
	query := `
	INSERT INTO legislative_terms (
		id, body_id, external_id, name, start_date, end_date,
		oparl_created, oparl_modified, raw_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		body_id = excluded.body_id,
		name = excluded.name,
		start_date = excluded.start_date,
		end_date = excluded.end_date,
		oparl_created = excluded.oparl_created,
		oparl_modified = excluded.oparl_modified,
		raw_json = excluded.raw_json,
		updated_at = excluded.updated_at
	RETURNING id`

	var id string
	err := s.db.db.QueryRowContext(ctx, query,
		common.NewSurrogateID(), bodyID, entity.ExternalID,
		content.Name, content.StartDate, content.EndDate,
		timeText(entity.Created), timeText(entity.Modified),
		[]byte(entity.RawJSON), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert legislative term: %w", err)
	}
	return id, nil
}
