package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/models"
)

// Writer persists processed entities, owning FK policy and the nested-entity
// cascade. The store below it only does dumb atomic upserts.
//
// FK policy per kind:
//   - Membership: both FKs mandatory; skip and log when either side is
//     missing. A later membership pass after persons and organizations will
//     pick the row up.
//   - AgendaItem: meeting FK mandatory; falls back to a store lookup before
//     skipping.
//   - File, Consultation: back-references best-effort, stored NULL when
//     unresolved.
type Writer struct {
	store   interfaces.EntityStorage
	cache   *IdentityCache
	events  interfaces.EventService
	metrics interfaces.MetricsService
	logger  arbor.ILogger
}

// WriteResult counts the rows one Write call touched, nested rows included
type WriteResult struct {
	Written int
	Skipped int
}

func (r *WriteResult) add(other WriteResult) {
	r.Written += other.Written
	r.Skipped += other.Skipped
}

func NewWriter(store interfaces.EntityStorage, cache *IdentityCache, events interfaces.EventService, metrics interfaces.MetricsService, logger arbor.ILogger) *Writer {
	return &Writer{
		store:   store,
		cache:   cache,
		events:  events,
		metrics: metrics,
		logger:  logger,
	}
}

// Write upserts one processed entity and cascades into its nested children.
// isNew reports whether the batch-exists check found no prior row; it drives
// the new-meeting/new-paper events but never the upsert itself.
func (w *Writer) Write(ctx context.Context, sourceName, bodyID string, entity *models.ProcessedEntity, isNew bool) (WriteResult, error) {
	var result WriteResult

	id, skipped, err := w.upsert(ctx, bodyID, entity)
	if err != nil {
		return result, err
	}
	if skipped {
		result.Skipped++
		return result, nil
	}
	result.Written++

	w.cache.Put(entity.Kind, entity.ExternalID, id)
	if w.metrics != nil {
		w.metrics.RecordEntitySynced(ctx, entity.Kind, sourceName)
	}
	if isNew {
		w.publishNewEntity(ctx, entity)
	}

	for _, nested := range entity.Nested {
		// Meeting locations need the back-link set once the location row
		// exists; the meeting upserts before its embedded location.
		if entity.Kind == models.KindMeeting && nested.Kind == models.KindLocation {
			nestedResult, err := w.writeMeetingLocation(ctx, bodyID, id, nested)
			result.add(nestedResult)
			if err != nil {
				return result, err
			}
			continue
		}

		nestedResult, err := w.Write(ctx, sourceName, bodyID, nested, false)
		result.add(nestedResult)
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

func (w *Writer) writeMeetingLocation(ctx context.Context, bodyID, meetingID string, nested *models.ProcessedEntity) (WriteResult, error) {
	var result WriteResult

	locationID, err := w.store.UpsertLocation(ctx, bodyID, nested)
	if err != nil {
		return result, err
	}
	result.Written++
	w.cache.Put(models.KindLocation, nested.ExternalID, locationID)

	if err := w.store.SetMeetingLocation(ctx, meetingID, locationID); err != nil {
		return result, err
	}
	return result, nil
}

// upsert dispatches to the per-kind store method, resolving FKs per policy.
// Returns skipped=true when FK policy drops the row.
func (w *Writer) upsert(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, bool, error) {
	switch entity.Kind {
	case models.KindOrganization:
		id, err := w.store.UpsertOrganization(ctx, bodyID, entity)
		return id, false, err

	case models.KindPerson:
		id, err := w.store.UpsertPerson(ctx, bodyID, entity)
		return id, false, err

	case models.KindMembership:
		return w.upsertMembership(ctx, entity)

	case models.KindMeeting:
		id, err := w.store.UpsertMeeting(ctx, bodyID, entity)
		return id, false, err

	case models.KindPaper:
		id, err := w.store.UpsertPaper(ctx, bodyID, entity)
		return id, false, err

	case models.KindAgendaItem:
		return w.upsertAgendaItem(ctx, entity)

	case models.KindFile:
		return w.upsertFile(ctx, bodyID, entity)

	case models.KindLocation:
		id, err := w.store.UpsertLocation(ctx, bodyID, entity)
		return id, false, err

	case models.KindConsultation:
		return w.upsertConsultation(ctx, bodyID, entity)

	case models.KindLegislativeTerm:
		id, err := w.store.UpsertLegislativeTerm(ctx, bodyID, entity)
		return id, false, err

	default:
		return "", false, fmt.Errorf("writer cannot persist kind %q", entity.Kind)
	}
}

func (w *Writer) upsertMembership(ctx context.Context, entity *models.ProcessedEntity) (string, bool, error) {
	content := entity.Membership

	personID, err := w.cache.Resolve(ctx, w.store, models.KindPerson, content.PersonExternalID)
	if errors.Is(err, interfaces.ErrNotFound) {
		w.logger.Warn().
			Str("membership", entity.ExternalID).
			Str("person", content.PersonExternalID).
			Msg("Skipping membership: person not mirrored")
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}

	organizationID, err := w.cache.Resolve(ctx, w.store, models.KindOrganization, content.OrganizationExternalID)
	if errors.Is(err, interfaces.ErrNotFound) {
		w.logger.Warn().
			Str("membership", entity.ExternalID).
			Str("organization", content.OrganizationExternalID).
			Msg("Skipping membership: organization not mirrored")
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}

	id, err := w.store.UpsertMembership(ctx, personID, organizationID, entity)
	return id, false, err
}

func (w *Writer) upsertAgendaItem(ctx context.Context, entity *models.ProcessedEntity) (string, bool, error) {
	meetingID, err := w.cache.Resolve(ctx, w.store, models.KindMeeting, entity.AgendaItem.MeetingExternalID)
	if errors.Is(err, interfaces.ErrNotFound) {
		w.logger.Warn().
			Str("agendaItem", entity.ExternalID).
			Str("meeting", entity.AgendaItem.MeetingExternalID).
			Msg("Skipping agenda item: meeting not mirrored")
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}

	id, err := w.store.UpsertAgendaItem(ctx, meetingID, entity)
	return id, false, err
}

func (w *Writer) upsertFile(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, bool, error) {
	paperID := w.resolveOptional(ctx, models.KindPaper, entity.File.PaperExternalID)
	meetingID := w.resolveOptional(ctx, models.KindMeeting, entity.File.MeetingExternalID)

	id, err := w.store.UpsertFile(ctx, bodyID, paperID, meetingID, entity)
	return id, false, err
}

func (w *Writer) upsertConsultation(ctx context.Context, bodyID string, entity *models.ProcessedEntity) (string, bool, error) {
	paperID := w.resolveOptional(ctx, models.KindPaper, entity.Consultation.PaperExternalID)

	id, err := w.store.UpsertConsultation(ctx, bodyID, paperID, entity)
	return id, false, err
}

// resolveOptional resolves a best-effort back-reference, returning nil when
// the target is absent or the lookup fails. The reference survives in raw
// JSON either way.
func (w *Writer) resolveOptional(ctx context.Context, kind models.EntityKind, externalID string) *string {
	if externalID == "" {
		return nil
	}
	id, err := w.cache.Resolve(ctx, w.store, kind, externalID)
	if err != nil {
		return nil
	}
	return &id
}

func (w *Writer) publishNewEntity(ctx context.Context, entity *models.ProcessedEntity) {
	if w.events == nil {
		return
	}

	switch entity.Kind {
	case models.KindMeeting:
		_ = w.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventNewMeeting,
			Payload: entity.ExternalID,
		})
	case models.KindPaper:
		_ = w.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventNewPaper,
			Payload: entity.ExternalID,
		})
	}
}
