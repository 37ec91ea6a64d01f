package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/models"
	"github.com/ternarybob/curia/internal/services/processor"
)

// Prober decides whether upstream honours the modified_since filter. Many
// OParl servers accept the parameter and silently ignore it, which would make
// a server-side incremental scan re-upsert everything while looking cheap.
type Prober struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

func NewProber(fetcher interfaces.Fetcher, logger arbor.ILogger) *Prober {
	return &Prober{fetcher: fetcher, logger: logger}
}

// Probe fetches one filtered page of the paper list (falling back to the
// meeting list) with modified_since = since. If any returned item carries a
// parseable modified strictly before the cutoff, the server ignored the
// filter. Probe failures choose the client-side mode: it is correct either
// way, just slower.
func (p *Prober) Probe(ctx context.Context, lists models.BodyLists, since time.Time) models.SyncMode {
	listURL := lists.Paper
	if listURL == "" {
		listURL = lists.Meeting
	}
	if listURL == "" {
		p.logger.Debug().Msg("No probeable list; using client-side incremental")
		return models.SyncModeIncrementalClient
	}

	iterator := p.fetcher.FetchList(ctx, listURL, &since)
	page, ok, err := iterator.Next(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", listURL).
			Msg("Filter probe failed; using client-side incremental")
		return models.SyncModeIncrementalClient
	}
	if !ok {
		// An empty filtered list is consistent with a working filter
		return models.SyncModeIncrementalServer
	}

	for _, raw := range page.Items {
		var common struct {
			Modified string `json:"modified"`
		}
		if err := json.Unmarshal(raw, &common); err != nil {
			continue
		}
		modified := processor.ParseDateTime(common.Modified)
		if modified == nil {
			continue
		}
		if modified.Before(since) {
			p.logger.Info().Str("url", listURL).
				Msg("Server ignores modified_since; using client-side incremental")
			return models.SyncModeIncrementalClient
		}
	}

	return models.SyncModeIncrementalServer
}
