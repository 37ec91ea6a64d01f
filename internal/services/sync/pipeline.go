package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/models"
	"github.com/ternarybob/curia/internal/services/processor"
)

const (
	// MinPages is the number of pages a client-side incremental scan always
	// reads before stale pages start counting toward the stop. Most upstream
	// lists order newest-first, but the first pages can be noisy.
	MinPages = 10

	// StalePages is the number of consecutive all-unchanged pages beyond the
	// MinPages floor that ends a client-side incremental scan. A list with no
	// changes at all is therefore read for MinPages+StalePages pages.
	StalePages = 5
)

// Pipeline mirrors one (body, kind) list. A pipeline run is one scan in one
// of the three modes; it fetches pages lazily, batch-checks what is already
// mirrored, writes through the Writer, and applies tombstones.
type Pipeline struct {
	fetcher   interfaces.Fetcher
	processor *processor.Processor
	writer    *Writer
	store     interfaces.EntityStorage
	logger    arbor.ILogger
}

func NewPipeline(fetcher interfaces.Fetcher, proc *processor.Processor, writer *Writer, store interfaces.EntityStorage, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		processor: proc,
		writer:    writer,
		store:     store,
		logger:    logger,
	}
}

// Run scans one list. since is the incremental cutoff; it is ignored in full
// mode. Page fetch errors end the scan with the partial result; item-level
// errors are recorded and skipped.
func (p *Pipeline) Run(ctx context.Context, sourceName string, body *models.Body, kind models.EntityKind, mode models.SyncMode, since *time.Time) models.PipelineResult {
	result := models.PipelineResult{Kind: kind}

	listURL := body.Lists.ForKind(kind)
	if listURL == "" {
		p.logger.Debug().
			Str("body", body.ExternalID).
			Str("kind", string(kind)).
			Msg("Body exposes no list for kind")
		return result
	}

	var modifiedSince *time.Time
	if mode == models.SyncModeIncrementalServer {
		modifiedSince = since
	}

	iterator := p.fetcher.FetchList(ctx, listURL, modifiedSince)
	stalePages := 0

	for {
		page, ok, err := iterator.Next(ctx)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: page %d: %v", kind, result.Pages+1, err))
			return result
		}
		if !ok {
			return result
		}
		result.Pages++

		pageChanged := p.runPage(ctx, sourceName, body, kind, mode, page.Items, &result)

		if mode == models.SyncModeIncrementalClient {
			if pageChanged {
				stalePages = 0
			} else if result.Pages > MinPages {
				stalePages++
			}
			if stalePages >= StalePages {
				p.logger.Debug().
					Str("body", body.ExternalID).
					Str("kind", string(kind)).
					Int("pages", result.Pages).
					Msg("Early stop: trailing pages unchanged")
				return result
			}
		}
	}
}

// runPage processes one page of items and reports whether anything on it was
// new, changed or tombstoned.
func (p *Pipeline) runPage(ctx context.Context, sourceName string, body *models.Body, kind models.EntityKind, mode models.SyncMode, items []json.RawMessage, result *models.PipelineResult) bool {
	if p.writer.metrics != nil {
		p.writer.metrics.RecordEntitiesBatch(ctx, sourceName, len(items))
	}

	entities := make([]*models.ProcessedEntity, 0, len(items))
	externalIDs := make([]string, 0, len(items))

	for _, raw := range items {
		entity := p.processor.Process(raw, body.ExternalID)
		if entity == nil {
			result.Skipped++
			continue
		}
		entities = append(entities, entity)
		if !entity.Deleted {
			externalIDs = append(externalIDs, entity.ExternalID)
		}
	}

	existing := map[string]*time.Time{}
	if len(externalIDs) > 0 {
		var err error
		existing, err = p.store.BatchExists(ctx, kind, externalIDs)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: batch-exists: %v", kind, err))
			return false
		}
	}

	pageChanged := false
	for _, entity := range entities {
		if entity.Deleted {
			existed, err := p.store.Delete(ctx, kind, entity.ExternalID)
			if err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("%s: delete %s: %v", kind, entity.ExternalID, err))
				continue
			}
			if existed {
				result.Deleted++
				pageChanged = true
			}
			continue
		}

		storedModified, exists := existing[entity.ExternalID]
		if mode == models.SyncModeIncrementalClient && exists && !isNewer(entity.Modified, storedModified) {
			continue
		}

		writeResult, err := p.writer.Write(ctx, sourceName, body.ID, entity, !exists)
		result.Skipped += writeResult.Skipped
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: write %s: %v", kind, entity.ExternalID, err))
			continue
		}
		if writeResult.Written == 0 {
			continue
		}

		if exists {
			result.Changed++
		} else {
			result.New++
		}
		pageChanged = true
	}

	return pageChanged
}

// isNewer reports whether the upstream modified timestamp is strictly after
// the stored one. A missing timestamp on either side counts as newer: better
// an extra upsert than a stale mirror.
func isNewer(upstream, stored *time.Time) bool {
	if upstream == nil || stored == nil {
		return true
	}
	return upstream.After(*stored)
}
