package sync

import (
	"context"
	"fmt"
	gosync "sync"

	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/curia/internal/models"
)

// pipelineStages is the per-body dependency order. Kinds within a stage have
// no FK edges between them and run in parallel; stages run in sequence so
// parents are mirrored before their children reference them.
var pipelineStages = [][]models.EntityKind{
	{models.KindOrganization, models.KindPerson, models.KindLegislativeTerm},
	{models.KindMembership},
	{models.KindMeeting, models.KindPaper},
	{models.KindLocation, models.KindAgendaItem, models.KindFile, models.KindConsultation},
}

// syncBody runs the full pipeline DAG for one body. It never returns an
// error: every failure lands in the result so sibling bodies keep running.
func (o *Orchestrator) syncBody(ctx context.Context, sourceName string, body *models.Body, full bool) models.BodySyncResult {
	start := o.clock.Now()
	result := models.BodySyncResult{
		BodyExternalID: body.ExternalID,
		BodyName:       body.Name,
		Counts:         make(map[models.EntityKind]int),
	}
	defer func() {
		if r := recover(); r != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("body job panic: %v", r))
		}
		result.Duration = o.clock.Now().Sub(start)
	}()

	cache := NewIdentityCache()
	cache.Put(models.KindBody, body.ExternalID, body.ID)
	writer := NewWriter(o.storage.EntityStorage(), cache, o.events, o.metrics, o.logger)
	pipeline := NewPipeline(o.fetcher, o.processor, writer, o.storage.EntityStorage(), o.logger)

	result.Mode = o.chooseMode(ctx, body, full)
	o.logger.Info().
		Str("body", body.ExternalID).
		Str("mode", string(result.Mode)).
		Msg("Starting body sync")

	var mu gosync.Mutex
	for _, stage := range pipelineStages {
		group, stageCtx := errgroup.WithContext(ctx)
		for _, kind := range stage {
			kind := kind
			group.Go(func() error {
				pipelineResult := pipeline.Run(stageCtx, sourceName, body, kind, result.Mode, body.LastSync)

				mu.Lock()
				result.Counts[kind] += pipelineResult.Synced()
				result.Tombstones += pipelineResult.Deleted
				result.Skipped += pipelineResult.Skipped
				result.Errors = append(result.Errors, pipelineResult.Errors...)
				mu.Unlock()
				return nil
			})
		}
		// Pipelines report failures through their result; the group error is
		// only context cancellation.
		if err := group.Wait(); err != nil {
			result.Errors = append(result.Errors, err.Error())
			return result
		}
	}

	// The high-water mark only advances on a clean run; a partial scan must
	// be retried from the previous cutoff.
	if len(result.Errors) == 0 {
		if err := o.storage.BodyStorage().UpdateBodySyncTime(ctx, body.ID, start); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("update body sync time: %v", err))
		}
	}

	return result
}

// chooseMode picks the scan mode for one body job. First syncs and forced
// syncs are full; otherwise the filter probe decides between server-side and
// client-side incremental.
func (o *Orchestrator) chooseMode(ctx context.Context, body *models.Body, full bool) models.SyncMode {
	if full || body.LastSync == nil {
		return models.SyncModeFull
	}
	prober := NewProber(o.fetcher, o.logger)
	return prober.Probe(ctx, body.Lists, *body.LastSync)
}
