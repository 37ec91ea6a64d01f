package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/curia/internal/common"
	"github.com/ternarybob/curia/internal/models"
)

func paperDoc(n int, modified string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"id": "https://oparl.example.org/paper/%d",
		"type": "https://schema.oparl.org/1.1/Paper",
		"name": "Vorlage %d",
		"modified": %q
	}`, n, n, modified))
}

func TestProbeDetectsIgnoredFilter(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	fetcher := newFakeFetcher()
	// The server returns items older than the cutoff: it ignored the filter
	fetcher.lists["https://x/papers"] = [][]json.RawMessage{{
		paperDoc(1, "2024-04-01T10:00:00Z"),
		paperDoc(2, "2023-01-01T10:00:00Z"),
	}}

	prober := NewProber(fetcher, common.GetLogger())
	mode := prober.Probe(context.Background(), models.BodyLists{Paper: "https://x/papers"}, since)
	assert.Equal(t, models.SyncModeIncrementalClient, mode)

	// The probe page was requested with the cutoff attached
	assert.NotNil(t, fetcher.modifiedSince["https://x/papers"])
}

func TestProbeTrustsCleanFilteredPage(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	fetcher := newFakeFetcher()
	fetcher.lists["https://x/papers"] = [][]json.RawMessage{{
		paperDoc(1, "2024-04-01T10:00:00Z"),
		paperDoc(2, "2024-03-02T10:00:00Z"),
	}}

	prober := NewProber(fetcher, common.GetLogger())
	mode := prober.Probe(context.Background(), models.BodyLists{Paper: "https://x/papers"}, since)
	assert.Equal(t, models.SyncModeIncrementalServer, mode)
}

func TestProbeEmptyFilteredListMeansServerSide(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	fetcher := newFakeFetcher()
	fetcher.lists["https://x/papers"] = [][]json.RawMessage{}

	prober := NewProber(fetcher, common.GetLogger())
	mode := prober.Probe(context.Background(), models.BodyLists{Paper: "https://x/papers"}, since)
	assert.Equal(t, models.SyncModeIncrementalServer, mode)
}

func TestProbeFailureFallsBackToClientSide(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	fetcher := newFakeFetcher()
	fetcher.listErr["https://x/papers"] = fmt.Errorf("boom")

	prober := NewProber(fetcher, common.GetLogger())
	mode := prober.Probe(context.Background(), models.BodyLists{Paper: "https://x/papers"}, since)
	assert.Equal(t, models.SyncModeIncrementalClient, mode)
}

func TestProbeFallsBackToMeetingList(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	fetcher := newFakeFetcher()
	fetcher.lists["https://x/meetings"] = [][]json.RawMessage{}

	prober := NewProber(fetcher, common.GetLogger())
	mode := prober.Probe(context.Background(), models.BodyLists{Meeting: "https://x/meetings"}, since)
	assert.Equal(t, models.SyncModeIncrementalServer, mode)
	assert.Equal(t, []string{"https://x/meetings"}, fetcher.listCalls)
}

func TestProbeWithoutProbeableList(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	prober := NewProber(newFakeFetcher(), common.GetLogger())
	mode := prober.Probe(context.Background(), models.BodyLists{}, since)
	assert.Equal(t, models.SyncModeIncrementalClient, mode)
}
