package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/curia/internal/common"
	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/models"
	"github.com/ternarybob/curia/internal/services/fetcher"
	"github.com/ternarybob/curia/internal/services/processor"
	"github.com/ternarybob/curia/internal/storage/sqlite"
)

// oparlServer serves a minimal but complete OParl endpoint: a System document,
// two bodies, and per-body entity lists.
type oparlServer struct {
	*httptest.Server
	failSecondBodyPapers atomic.Bool
}

func newOParlServer(t *testing.T) *oparlServer {
	t.Helper()
	s := &oparlServer{}

	mux := http.NewServeMux()
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	base := s.URL

	serve := func(path string, doc func() string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, doc())
		})
	}

	serve("/system", func() string {
		return fmt.Sprintf(`{
			"id": %q,
			"type": "https://schema.oparl.org/1.1/System",
			"name": "Beispiel RIS",
			"body": %q
		}`, base+"/system", base+"/bodies")
	})

	body1 := fmt.Sprintf(`{
		"id": %q,
		"type": "https://schema.oparl.org/1.1/Body",
		"name": "Stadt Beispiel",
		"organization": %q,
		"person": %q,
		"membership": %q,
		"meeting": %q,
		"paper": %q
	}`, base+"/body/1", base+"/body/1/organizations", base+"/body/1/persons",
		base+"/body/1/memberships", base+"/body/1/meetings", base+"/body/1/papers")

	body2 := fmt.Sprintf(`{
		"id": %q,
		"type": "https://schema.oparl.org/1.1/Body",
		"name": "Kreis Anderswo",
		"paper": %q
	}`, base+"/body/2", base+"/body/2/papers")

	serve("/bodies", func() string {
		return fmt.Sprintf(`{"data": [%s, %s]}`, body1, body2)
	})
	serve("/body/1", func() string { return body1 })

	serve("/body/1/organizations", func() string {
		return fmt.Sprintf(`{"data": [{
			"id": %q,
			"type": "https://schema.oparl.org/1.1/Organization",
			"name": "Rat der Stadt",
			"modified": "2024-03-01T10:00:00Z"
		}]}`, base+"/organization/1")
	})

	serve("/body/1/persons", func() string {
		return fmt.Sprintf(`{"data": [{
			"id": %q,
			"type": "https://schema.oparl.org/1.1/Person",
			"name": "Erika Musterfrau",
			"modified": "2024-03-01T10:00:00Z"
		}]}`, base+"/person/1")
	})

	serve("/body/1/memberships", func() string {
		return fmt.Sprintf(`{"data": [{
			"id": %q,
			"type": "https://schema.oparl.org/1.1/Membership",
			"person": %q,
			"organization": %q,
			"role": "Mitglied",
			"votingRight": true,
			"modified": "2024-03-01T10:00:00Z"
		}]}`, base+"/membership/1", base+"/person/1", base+"/organization/1")
	})

	serve("/body/1/meetings", func() string {
		return fmt.Sprintf(`{"data": [{
			"id": %q,
			"type": "https://schema.oparl.org/1.1/Meeting",
			"name": "1. Ratssitzung",
			"start": "2024-03-10T17:00:00Z",
			"modified": "2024-03-01T10:00:00Z",
			"location": {
				"id": %q,
				"type": "https://schema.oparl.org/1.1/Location",
				"room": "Ratssaal"
			},
			"agendaItem": [{
				"id": %q,
				"type": "https://schema.oparl.org/1.1/AgendaItem",
				"number": "1",
				"order": 1,
				"name": "Eröffnung"
			}],
			"invitation": {
				"id": %q,
				"type": "https://schema.oparl.org/1.1/File",
				"fileName": "einladung.pdf"
			}
		}]}`, base+"/meeting/1", base+"/location/1", base+"/agendaitem/1", base+"/file/1")
	})

	serve("/body/1/papers", func() string {
		return fmt.Sprintf(`{"data": [{
			"id": %q,
			"type": "https://schema.oparl.org/1.1/Paper",
			"name": "Haushaltsplan 2024",
			"reference": "2024/001",
			"modified": "2024-03-01T10:00:00Z",
			"mainFile": {
				"id": %q,
				"type": "https://schema.oparl.org/1.1/File",
				"fileName": "haushalt.pdf"
			},
			"consultation": [{
				"id": %q,
				"type": "https://schema.oparl.org/1.1/Consultation",
				"meeting": %q,
				"role": "Entscheidung"
			}]
		}]}`, base+"/paper/1", base+"/file/2", base+"/consultation/1", base+"/meeting/1")
	})

	mux.HandleFunc("/body/2/papers", func(w http.ResponseWriter, r *http.Request) {
		if s.failSecondBodyPapers.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"data": [{
			"id": %q,
			"type": "https://schema.oparl.org/1.1/Paper",
			"name": "Kreisvorlage",
			"modified": "2024-03-01T10:00:00Z"
		}]}`, base+"/paper/2")
	})

	return s
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *sqlite.Manager) {
	t.Helper()
	logger := common.GetLogger()

	config := common.NewDefaultConfig()
	config.OParl.MaxConcurrent = 4
	config.OParl.RequestsPerSecond = 1000
	config.OParl.RequestTimeout = 5 * time.Second
	config.OParl.MaxRetries = 2
	config.OParl.InitialBackoff = time.Millisecond
	config.OParl.MaxBackoff = 5 * time.Millisecond

	manager, err := sqlite.NewMigratedManager(context.Background(), logger,
		&common.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	client := fetcher.NewClient(&config.OParl, nil, logger)
	orchestrator := NewOrchestrator(config, client, processor.New(logger), manager,
		nil, nil, interfaces.SystemClock{}, logger)
	return orchestrator, manager
}

func TestSyncFullEndToEnd(t *testing.T) {
	server := newOParlServer(t)
	orchestrator, manager := newTestOrchestrator(t)
	ctx := context.Background()

	// An unknown URL is registered on the fly
	result, err := orchestrator.Sync(ctx, server.URL+"/system", true, "")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success, "errors: %v", result.Errors)
	assert.Len(t, result.Bodies, 2)

	assert.Equal(t, 1, result.Counts[models.KindOrganization])
	assert.Equal(t, 1, result.Counts[models.KindPerson])
	assert.Equal(t, 1, result.Counts[models.KindMembership])
	assert.Equal(t, 1, result.Counts[models.KindMeeting])
	assert.Equal(t, 2, result.Counts[models.KindPaper])

	// Embedded children land in the mirror even without their own lists
	counts, err := manager.EntityStorage().Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.KindLocation])
	assert.Equal(t, 1, counts[models.KindAgendaItem])
	assert.Equal(t, 2, counts[models.KindFile])
	assert.Equal(t, 1, counts[models.KindConsultation])

	// The meeting got its location back-link
	meeting, err := manager.EntityStorage().GetMeeting(ctx, server.URL+"/meeting/1")
	require.NoError(t, err)
	assert.NotNil(t, meeting.LocationID)

	// High-water marks advanced on the clean run
	source, err := manager.SourceStorage().GetSource(ctx, server.URL+"/system")
	require.NoError(t, err)
	assert.NotNil(t, source.LastSync)
	assert.NotNil(t, source.LastFullSync)

	body, err := manager.BodyStorage().GetBody(ctx, server.URL+"/body/1")
	require.NoError(t, err)
	assert.NotNil(t, body.LastSync)

	assert.Greater(t, result.HTTPStats.Requests, int64(0))
}

func TestSyncIncrementalSkipsUnchanged(t *testing.T) {
	server := newOParlServer(t)
	orchestrator, _ := newTestOrchestrator(t)
	ctx := context.Background()

	first, err := orchestrator.Sync(ctx, server.URL+"/system", true, "")
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := orchestrator.Sync(ctx, server.URL+"/system", false, "")
	require.NoError(t, err)
	require.True(t, second.Success, "errors: %v", second.Errors)

	// The fixture ignores modified_since and replays stale items, so the
	// probe settles on the client-side mode and nothing is re-upserted.
	for _, body := range second.Bodies {
		assert.Equal(t, models.SyncModeIncrementalClient, body.Mode)
	}
	assert.Equal(t, 0, second.TotalSynced())
}

func TestSyncBodyFilter(t *testing.T) {
	server := newOParlServer(t)
	orchestrator, _ := newTestOrchestrator(t)

	result, err := orchestrator.Sync(context.Background(), server.URL+"/system", true, "Anderswo")
	require.NoError(t, err)
	require.Len(t, result.Bodies, 1)
	assert.Equal(t, "Kreis Anderswo", result.Bodies[0].BodyName)
}

func TestSyncBodyFailureIsolation(t *testing.T) {
	server := newOParlServer(t)
	server.failSecondBodyPapers.Store(true)
	orchestrator, manager := newTestOrchestrator(t)
	ctx := context.Background()

	result, err := orchestrator.Sync(ctx, server.URL+"/system", true, "")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Errors)

	// The healthy body still synced in full
	assert.Equal(t, 1, result.Counts[models.KindOrganization])
	assert.Equal(t, 1, result.Counts[models.KindMeeting])

	// Neither high-water mark advanced for the broken side
	source, err := manager.SourceStorage().GetSource(ctx, server.URL+"/system")
	require.NoError(t, err)
	assert.Nil(t, source.LastSync)

	body2, err := manager.BodyStorage().GetBody(ctx, server.URL+"/body/2")
	require.NoError(t, err)
	assert.Nil(t, body2.LastSync)

	body1, err := manager.BodyStorage().GetBody(ctx, server.URL+"/body/1")
	require.NoError(t, err)
	assert.NotNil(t, body1.LastSync, "sibling body keeps its clean-run mark")
}

func TestSyncSingleBodyURL(t *testing.T) {
	server := newOParlServer(t)
	orchestrator, _ := newTestOrchestrator(t)

	result, err := orchestrator.Sync(context.Background(), server.URL+"/body/1", true, "")
	require.NoError(t, err)
	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Len(t, result.Bodies, 1)
	assert.Equal(t, "Stadt Beispiel", result.Bodies[0].BodyName)
}

func TestAddSource(t *testing.T) {
	server := newOParlServer(t)
	orchestrator, manager := newTestOrchestrator(t)
	ctx := context.Background()

	source, err := orchestrator.AddSource(ctx, server.URL+"/system")
	require.NoError(t, err)
	assert.Equal(t, "Beispiel RIS", source.Name)

	stored, err := manager.SourceStorage().GetSource(ctx, server.URL+"/system")
	require.NoError(t, err)
	assert.Equal(t, source.ID, stored.ID)
}

func TestAddSourceUnreachable(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t)

	_, err := orchestrator.AddSource(context.Background(), "http://127.0.0.1:1/system")
	require.Error(t, err)
}

// brokenSourceStorage lists one registered source but fails every read of it,
// like a connection dropped between listing and syncing.
type brokenSourceStorage struct {
	interfaces.SourceStorage
}

func (brokenSourceStorage) ListSources(ctx context.Context) ([]*models.Source, error) {
	return []*models.Source{{ID: "src-1", URL: "https://oparl.example.org/system", Name: "Broken"}}, nil
}

func (brokenSourceStorage) GetSource(ctx context.Context, url string) (*models.Source, error) {
	return nil, fmt.Errorf("database connection lost")
}

type brokenStorageManager struct {
	interfaces.StorageManager
}

func (brokenStorageManager) SourceStorage() interfaces.SourceStorage {
	return brokenSourceStorage{}
}

func TestSyncAllSurfacesSourceFailure(t *testing.T) {
	logger := common.GetLogger()
	config := common.NewDefaultConfig()
	config.OParl.MaxConcurrent = 4

	orchestrator := NewOrchestrator(config, newFakeFetcher(), processor.New(logger),
		brokenStorageManager{}, nil, nil, interfaces.SystemClock{}, logger)

	results, err := orchestrator.SyncAll(context.Background(), false, false)
	require.NoError(t, err)
	require.Len(t, results, 1, "a failed source must not vanish from the summary")

	result := results[0]
	assert.False(t, result.Success)
	assert.Equal(t, "https://oparl.example.org/system", result.SourceURL)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "database connection lost")
}

func TestSyncAll(t *testing.T) {
	server := newOParlServer(t)
	orchestrator, _ := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := orchestrator.AddSource(ctx, server.URL+"/system")
	require.NoError(t, err)

	results, err := orchestrator.SyncAll(ctx, true, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}
