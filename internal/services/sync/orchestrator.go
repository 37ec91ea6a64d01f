package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	gosync "sync"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/curia/internal/common"
	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/models"
	"github.com/ternarybob/curia/internal/services/processor"
)

// Orchestrator drives source-level sync jobs: endpoint auto-detection, body
// discovery, parallel body jobs with failure isolation, and result
// aggregation.
type Orchestrator struct {
	config    *common.Config
	fetcher   interfaces.Fetcher
	processor *processor.Processor
	storage   interfaces.StorageManager
	events    interfaces.EventService
	metrics   interfaces.MetricsService
	clock     interfaces.Clock
	logger    arbor.ILogger
}

func NewOrchestrator(
	config *common.Config,
	fetcher interfaces.Fetcher,
	proc *processor.Processor,
	storage interfaces.StorageManager,
	events interfaces.EventService,
	metrics interfaces.MetricsService,
	clock interfaces.Clock,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		config:    config,
		fetcher:   fetcher,
		processor: proc,
		storage:   storage,
		events:    events,
		metrics:   metrics,
		clock:     clock,
		logger:    logger,
	}
}

// AddSource registers an OParl endpoint. The URL may point at a System
// document, a single Body, or a body list; detection happens per sync, so
// registration only needs the document to be reachable and parseable.
func (o *Orchestrator) AddSource(ctx context.Context, url string) (*models.Source, error) {
	raw, err := o.fetcher.FetchObject(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("endpoint unreachable: %w", err)
	}

	var doc struct {
		models.Envelope
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("endpoint returned no JSON document: %w", err)
	}

	source, err := o.storage.SourceStorage().UpsertSource(ctx, url, doc.Name, raw)
	if err != nil {
		return nil, err
	}

	o.logger.Info().Str("url", url).Str("name", doc.Name).Msg("Source registered")
	return source, nil
}

// Sync runs one source job. bodyFilter, when non-empty, restricts the job to
// bodies whose external id or name contains the filter. The returned result
// is non-nil even on failure when any work was attempted.
func (o *Orchestrator) Sync(ctx context.Context, sourceURL string, full bool, bodyFilter string) (*models.SourceSyncResult, error) {
	source, err := o.storage.SourceStorage().GetSource(ctx, sourceURL)
	if errors.Is(err, interfaces.ErrNotFound) {
		source, err = o.AddSource(ctx, sourceURL)
	}
	if err != nil {
		return nil, err
	}

	start := o.clock.Now()
	result := &models.SourceSyncResult{
		SourceURL:  source.URL,
		SourceName: source.Name,
		Full:       full,
		Counts:     make(map[models.EntityKind]int),
	}

	o.publish(ctx, interfaces.EventSyncStarted, source.URL)

	bodies, err := o.discoverBodies(ctx, source, bodyFilter)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Duration = o.clock.Now().Sub(start)
		result.HTTPStats = o.fetcher.Stats()
		o.publish(ctx, interfaces.EventSyncFailed, result)
		return result, err
	}

	// Body jobs run in parallel and fail independently: one broken body
	// never aborts its siblings.
	var mu gosync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.config.OParl.MaxConcurrent)
	for _, body := range bodies {
		body := body
		group.Go(func() error {
			bodyResult := o.syncBody(groupCtx, source.Name, body, full)
			o.publish(ctx, interfaces.EventBodyCompleted, bodyResult)

			mu.Lock()
			result.Bodies = append(result.Bodies, bodyResult)
			for kind, n := range bodyResult.Counts {
				result.Counts[kind] += n
			}
			result.Tombstones += bodyResult.Tombstones
			result.Skipped += bodyResult.Skipped
			result.Errors = append(result.Errors, bodyResult.Errors...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	result.Success = len(result.Errors) == 0
	result.Duration = o.clock.Now().Sub(start)
	result.HTTPStats = o.fetcher.Stats()

	if result.Success {
		if err := o.storage.SourceStorage().UpdateSourceSyncTime(ctx, source.ID, start, full); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("update source sync time: %v", err))
		}
	}

	if result.Success {
		o.publish(ctx, interfaces.EventSyncCompleted, result)
	} else {
		o.publish(ctx, interfaces.EventSyncFailed, result)
	}

	o.logger.Info().
		Str("source", source.URL).
		Int("synced", result.TotalSynced()).
		Int("tombstones", result.Tombstones).
		Int("errors", len(result.Errors)).
		Str("duration", result.Duration.String()).
		Msg("Source sync finished")

	return result, nil
}

// SyncAll syncs every registered source. Sources run sequentially by
// default; the fetcher's per-host budget already caps parallelism against a
// shared upstream, and sequential runs keep the logs readable.
func (o *Orchestrator) SyncAll(ctx context.Context, full, parallel bool) ([]*models.SourceSyncResult, error) {
	sources, err := o.storage.SourceStorage().ListSources(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*models.SourceSyncResult, 0, len(sources))

	if !parallel {
		for _, source := range sources {
			result, err := o.Sync(ctx, source.URL, full, "")
			if result == nil {
				result = failedSourceResult(source, err)
			}
			results = append(results, result)
		}
		return results, nil
	}

	var mu gosync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.config.OParl.MaxConcurrent)
	for _, source := range sources {
		source := source
		group.Go(func() error {
			result, err := o.Sync(groupCtx, source.URL, full, "")
			if result == nil {
				result = failedSourceResult(source, err)
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return results, nil
}

// failedSourceResult stands in for a job that died before it could produce a
// result, so a failed source never vanishes from the sync-all summary.
func failedSourceResult(source *models.Source, err error) *models.SourceSyncResult {
	result := &models.SourceSyncResult{
		SourceURL:  source.URL,
		SourceName: source.Name,
		Counts:     make(map[models.EntityKind]int),
	}
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	return result
}

// discoverBodies auto-detects what the source URL points at and returns the
// mirrored body rows to sync. Every discovered body document is upserted
// before its job starts, so body rows exist even when the job later fails.
func (o *Orchestrator) discoverBodies(ctx context.Context, source *models.Source, bodyFilter string) ([]*models.Body, error) {
	raw, err := o.fetcher.FetchObject(ctx, source.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch source document: %w", err)
	}

	var envelope models.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("source document is not JSON: %w", err)
	}

	var bodyDocs []json.RawMessage
	switch {
	case models.KindFromTypeURL(envelope.Type) == models.KindSystem:
		if envelope.Body == "" {
			return nil, fmt.Errorf("system document %s exposes no body list", source.URL)
		}
		bodyDocs, err = o.fetcher.FetchListAll(ctx, envelope.Body, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch body list: %w", err)
		}
	case models.KindFromTypeURL(envelope.Type) == models.KindBody:
		bodyDocs = []json.RawMessage{raw}
	case len(envelope.Data) > 0:
		// A bare list envelope: treat the items as body documents
		bodyDocs = envelope.Data
	default:
		return nil, fmt.Errorf("source %s is neither a System, a Body, nor a body list", source.URL)
	}

	var bodies []*models.Body
	for _, doc := range bodyDocs {
		entity := o.processor.Process(doc, "")
		if entity == nil || entity.Kind != models.KindBody {
			o.logger.Warn().Str("source", source.URL).Msg("Skipping non-body document in body list")
			continue
		}

		if bodyFilter != "" && !matchesBodyFilter(entity, bodyFilter) {
			continue
		}

		bodyID, err := o.storage.BodyStorage().UpsertBody(ctx, source.ID, entity)
		if err != nil {
			return nil, fmt.Errorf("upsert body %s: %w", entity.ExternalID, err)
		}

		// Embedded legislative terms ride along on the body document
		o.writeBodyNested(ctx, source.Name, bodyID, entity)

		body, err := o.storage.BodyStorage().GetBody(ctx, entity.ExternalID)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, body)
	}

	if len(bodies) == 0 {
		return nil, fmt.Errorf("source %s yielded no bodies (filter %q)", source.URL, bodyFilter)
	}
	return bodies, nil
}

func (o *Orchestrator) writeBodyNested(ctx context.Context, sourceName, bodyID string, entity *models.ProcessedEntity) {
	if len(entity.Nested) == 0 {
		return
	}

	cache := NewIdentityCache()
	writer := NewWriter(o.storage.EntityStorage(), cache, o.events, o.metrics, o.logger)
	for _, nested := range entity.Nested {
		if _, err := writer.Write(ctx, sourceName, bodyID, nested, false); err != nil {
			o.logger.Warn().Err(err).
				Str("entity", nested.ExternalID).
				Msg("Failed to write embedded body child")
		}
	}
}

func matchesBodyFilter(entity *models.ProcessedEntity, filter string) bool {
	if strings.Contains(entity.ExternalID, filter) {
		return true
	}
	return entity.Body != nil && strings.Contains(entity.Body.Name, filter)
}

func (o *Orchestrator) publish(ctx context.Context, eventType interfaces.EventType, payload any) {
	if o.events == nil {
		return
	}
	_ = o.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload})
}
