package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ternarybob/curia/internal/models"
)

// Page is one page of an OParl list: the items in upstream order plus the
// URL of the next page, if any.
type Page struct {
	Items []json.RawMessage
	Next  string
}

// PageIterator walks the pages of one OParl list. It is finite and not
// restartable; pages yield in upstream order.
type PageIterator interface {
	// Next returns the next page, or ok=false when the list is exhausted
	Next(ctx context.Context) (page *Page, ok bool, err error)
}

// Fetcher is the sole component that performs HTTP. It enforces the per-host
// concurrency budget and retry policy; everything above it deals in
// already-fetched JSON.
type Fetcher interface {
	// FetchObject performs a single GET for one OParl document
	FetchObject(ctx context.Context, url string) (json.RawMessage, error)

	// FetchList returns a lazy page iterator for a list endpoint. When
	// modifiedSince is non-nil, the modified_since query parameter is
	// appended.
	FetchList(ctx context.Context, url string, modifiedSince *time.Time) PageIterator

	// FetchListAll eagerly drains FetchList into a single slice
	FetchListAll(ctx context.Context, url string, modifiedSince *time.Time) ([]json.RawMessage, error)

	// Stats returns a snapshot of the request counters
	Stats() models.RequestStats
}
