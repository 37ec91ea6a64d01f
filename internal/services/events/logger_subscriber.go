package events

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/models"
)

// RegisterLoggerSubscriber wires the default log-line subscribers for sync
// lifecycle events. This is the baseline consumer of the event bus; anything
// heavier (webhooks, search indexing) subscribes alongside it.
func RegisterLoggerSubscriber(service interfaces.EventService, logger arbor.ILogger) error {
	subscriptions := map[interfaces.EventType]interfaces.EventHandler{
		interfaces.EventSyncStarted: func(ctx context.Context, event interfaces.Event) error {
			if url, ok := event.Payload.(string); ok {
				logger.Info().Str("source", url).Msg("Sync started")
			}
			return nil
		},
		interfaces.EventBodyCompleted: func(ctx context.Context, event interfaces.Event) error {
			result, ok := event.Payload.(models.BodySyncResult)
			if !ok {
				return nil
			}
			logger.Info().
				Str("body", result.BodyExternalID).
				Str("mode", string(result.Mode)).
				Int("tombstones", result.Tombstones).
				Int("skipped", result.Skipped).
				Int("errors", len(result.Errors)).
				Str("duration", result.Duration.String()).
				Msg("Body sync completed")
			return nil
		},
		interfaces.EventSyncCompleted: func(ctx context.Context, event interfaces.Event) error {
			result, ok := event.Payload.(*models.SourceSyncResult)
			if !ok {
				return nil
			}
			logger.Info().
				Str("source", result.SourceURL).
				Int("synced", result.TotalSynced()).
				Int("bodies", len(result.Bodies)).
				Msg("Sync completed")
			return nil
		},
		interfaces.EventSyncFailed: func(ctx context.Context, event interfaces.Event) error {
			result, ok := event.Payload.(*models.SourceSyncResult)
			if !ok {
				return nil
			}
			logger.Warn().
				Str("source", result.SourceURL).
				Int("errors", len(result.Errors)).
				Msg("Sync failed")
			return nil
		},
		interfaces.EventNewMeeting: func(ctx context.Context, event interfaces.Event) error {
			if id, ok := event.Payload.(string); ok {
				logger.Debug().Str("meeting", id).Msg("New meeting mirrored")
			}
			return nil
		},
		interfaces.EventNewPaper: func(ctx context.Context, event interfaces.Event) error {
			if id, ok := event.Payload.(string); ok {
				logger.Debug().Str("paper", id).Msg("New paper mirrored")
			}
			return nil
		},
	}

	for eventType, handler := range subscriptions {
		if err := service.Subscribe(eventType, handler); err != nil {
			return err
		}
	}
	return nil
}
