package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/curia/internal/common"
	"github.com/ternarybob/curia/internal/models"
	"github.com/ternarybob/curia/internal/services/processor"
	"github.com/ternarybob/curia/internal/storage/sqlite"
)

type pipelineFixture struct {
	manager  *sqlite.Manager
	fetcher  *fakeFetcher
	pipeline *Pipeline
	body     *models.Body
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	ctx := context.Background()
	logger := common.GetLogger()

	manager, err := sqlite.NewMigratedManager(ctx, logger,
		&common.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	source, err := manager.SourceStorage().UpsertSource(ctx, "https://oparl.example.org/system", "Example", nil)
	require.NoError(t, err)

	bodyEntity := &models.ProcessedEntity{
		Kind:       models.KindBody,
		ExternalID: "https://oparl.example.org/body/1",
		RawJSON:    json.RawMessage(`{}`),
		Body: &models.BodyContent{
			Name: "Stadt Beispiel",
			Lists: models.BodyLists{
				Paper:   "https://x/papers",
				Meeting: "https://x/meetings",
			},
		},
	}
	_, err = manager.BodyStorage().UpsertBody(ctx, source.ID, bodyEntity)
	require.NoError(t, err)
	body, err := manager.BodyStorage().GetBody(ctx, bodyEntity.ExternalID)
	require.NoError(t, err)

	fetcher := newFakeFetcher()
	cache := NewIdentityCache()
	cache.Put(models.KindBody, body.ExternalID, body.ID)
	writer := NewWriter(manager.EntityStorage(), cache, nil, nil, logger)
	pipeline := NewPipeline(fetcher, processor.New(logger), writer, manager.EntityStorage(), logger)

	return &pipelineFixture{manager: manager, fetcher: fetcher, pipeline: pipeline, body: body}
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func (f *pipelineFixture) run(mode models.SyncMode) models.PipelineResult {
	return f.pipeline.Run(context.Background(), "Example", f.body, models.KindPaper, mode, nil)
}

func TestPipelineFullSync(t *testing.T) {
	f := newPipelineFixture(t)
	f.fetcher.lists["https://x/papers"] = [][]json.RawMessage{
		{paperDoc(1, "2024-03-01T10:00:00Z"), paperDoc(2, "2024-03-01T10:00:00Z")},
		{paperDoc(3, "2024-03-01T10:00:00Z")},
	}

	result := f.run(models.SyncModeFull)
	require.Empty(t, result.Errors)
	assert.Equal(t, 3, result.New)
	assert.Equal(t, 0, result.Changed)
	assert.Equal(t, 2, result.Pages)

	counts, err := f.manager.EntityStorage().Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.KindPaper])
}

func TestPipelineFullModeResyncCountsChanged(t *testing.T) {
	f := newPipelineFixture(t)
	f.fetcher.lists["https://x/papers"] = [][]json.RawMessage{
		{paperDoc(1, "2024-03-01T10:00:00Z")},
	}

	first := f.run(models.SyncModeFull)
	assert.Equal(t, 1, first.New)

	// Full mode upserts unconditionally, even with identical timestamps
	second := f.run(models.SyncModeFull)
	assert.Equal(t, 0, second.New)
	assert.Equal(t, 1, second.Changed)
}

func TestPipelineClientModeSkipsUnchanged(t *testing.T) {
	f := newPipelineFixture(t)
	f.fetcher.lists["https://x/papers"] = [][]json.RawMessage{
		{paperDoc(1, "2024-03-01T10:00:00Z"), paperDoc(2, "2024-03-01T10:00:00Z")},
	}

	f.run(models.SyncModeFull)

	// Same timestamps again: nothing is newer, nothing is written
	unchanged := f.run(models.SyncModeIncrementalClient)
	assert.Equal(t, 0, unchanged.Synced())

	// One item moves forward
	f.fetcher.lists["https://x/papers"] = [][]json.RawMessage{
		{paperDoc(1, "2024-03-05T10:00:00Z"), paperDoc(2, "2024-03-01T10:00:00Z")},
	}
	changed := f.run(models.SyncModeIncrementalClient)
	assert.Equal(t, 1, changed.Changed)
	assert.Equal(t, 0, changed.New)
}

func TestPipelineTombstones(t *testing.T) {
	f := newPipelineFixture(t)
	f.fetcher.lists["https://x/papers"] = [][]json.RawMessage{
		{paperDoc(1, "2024-03-01T10:00:00Z")},
	}
	f.run(models.SyncModeFull)

	tombstone := json.RawMessage(`{"id": "https://oparl.example.org/paper/1", "deleted": true}`)
	ghost := json.RawMessage(`{"id": "https://oparl.example.org/paper/99", "deleted": true}`)
	f.fetcher.lists["https://x/papers"] = [][]json.RawMessage{{tombstone, ghost}}

	result := f.run(models.SyncModeIncrementalClient)
	require.Empty(t, result.Errors)
	// Only the tombstone that deleted a mirrored row counts
	assert.Equal(t, 1, result.Deleted)

	counts, err := f.manager.EntityStorage().Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, counts[models.KindPaper])
}

func TestPipelineEarlyStopAllStale(t *testing.T) {
	f := newPipelineFixture(t)

	pages := make([][]json.RawMessage, 20)
	for i := range pages {
		pages[i] = []json.RawMessage{
			paperDoc(i*2+1, "2024-03-01T10:00:00Z"),
			paperDoc(i*2+2, "2024-03-01T10:00:00Z"),
		}
	}
	f.fetcher.lists["https://x/papers"] = pages
	full := f.run(models.SyncModeFull)
	assert.Equal(t, 20, full.Pages)
	assert.Equal(t, 40, full.New)

	// Nothing changed: the scan reads the page floor plus the full stale run
	result := f.run(models.SyncModeIncrementalClient)
	assert.Equal(t, MinPages+StalePages, result.Pages)
	assert.Equal(t, 0, result.Synced())
}

func TestPipelineEarlyStopAfterTrailingStalePages(t *testing.T) {
	f := newPipelineFixture(t)

	pages := make([][]json.RawMessage, 20)
	for i := range pages {
		pages[i] = []json.RawMessage{
			paperDoc(i*2+1, "2024-03-01T10:00:00Z"),
			paperDoc(i*2+2, "2024-03-01T10:00:00Z"),
		}
	}
	f.fetcher.lists["https://x/papers"] = pages
	f.run(models.SyncModeFull)

	// Recent activity on the first ten pages, then a long unchanged tail
	for i := 0; i < 10; i++ {
		pages[i] = []json.RawMessage{
			paperDoc(i*2+1, "2024-04-01T10:00:00Z"),
			paperDoc(i*2+2, "2024-04-01T10:00:00Z"),
		}
	}
	f.fetcher.lists["https://x/papers"] = pages

	result := f.run(models.SyncModeIncrementalClient)
	assert.Equal(t, 15, result.Pages, "ten changed pages plus five stale ones")
	assert.Equal(t, 20, result.Changed)
}

func TestPipelineServerModePassesCutoff(t *testing.T) {
	f := newPipelineFixture(t)
	f.fetcher.lists["https://x/papers"] = [][]json.RawMessage{}

	since := mustTime(t, "2024-03-01T00:00:00Z")
	f.pipeline.Run(context.Background(), "Example", f.body, models.KindPaper,
		models.SyncModeIncrementalServer, &since)

	got := f.fetcher.modifiedSince["https://x/papers"]
	require.NotNil(t, got)
	assert.True(t, got.Equal(since))

	// Client mode never forwards the cutoff upstream
	f.pipeline.Run(context.Background(), "Example", f.body, models.KindPaper,
		models.SyncModeIncrementalClient, &since)
	assert.Nil(t, f.fetcher.modifiedSince["https://x/papers"])
}

func TestPipelineKindWithoutList(t *testing.T) {
	f := newPipelineFixture(t)

	result := f.pipeline.Run(context.Background(), "Example", f.body, models.KindConsultation,
		models.SyncModeFull, nil)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, result.Pages)
	assert.Empty(t, f.fetcher.listCalls)
}

func TestPipelinePageErrorKeepsPartialResult(t *testing.T) {
	f := newPipelineFixture(t)
	f.fetcher.listErr["https://x/papers"] = fmt.Errorf("upstream 500")

	result := f.run(models.SyncModeFull)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "upstream 500")
	assert.Equal(t, 0, result.Pages)
}
