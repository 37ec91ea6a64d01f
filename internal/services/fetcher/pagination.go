package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/models"
)

// pageIterator walks one OParl list. The cursor is inherently sequential:
// the next URL comes from the previous page's links.
type pageIterator struct {
	client *Client
	next   string
	failed bool
}

// FetchList returns a lazy page iterator. When modifiedSince is non-nil the
// modified_since query parameter is appended to the list URL.
func (c *Client) FetchList(ctx context.Context, listURL string, modifiedSince *time.Time) interfaces.PageIterator {
	return &pageIterator{
		client: c,
		next:   withModifiedSince(listURL, modifiedSince),
	}
}

// FetchListAll eagerly drains FetchList into a single slice
func (c *Client) FetchListAll(ctx context.Context, listURL string, modifiedSince *time.Time) ([]json.RawMessage, error) {
	var items []json.RawMessage

	it := c.FetchList(ctx, listURL, modifiedSince)
	for {
		page, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, page.Items...)
	}
}

// Next fetches the next page, preserving upstream item order. After an error
// the iterator is spent; the cursor cannot be safely resumed.
func (it *pageIterator) Next(ctx context.Context) (*interfaces.Page, bool, error) {
	if it.failed || it.next == "" {
		return nil, false, nil
	}

	pageURL := it.next
	body, err := it.client.get(ctx, pageURL)
	if err != nil {
		it.failed = true
		return nil, false, err
	}

	var list models.ObjectList
	if err := json.Unmarshal(body, &list); err != nil {
		it.failed = true
		return nil, false, &FetchError{URL: pageURL, Permanent: true, Err: fmt.Errorf("malformed list envelope: %w", err)}
	}

	it.next = list.Links.Next
	return &interfaces.Page{Items: list.Data, Next: list.Links.Next}, true, nil
}

// withModifiedSince appends the modified_since query parameter
func withModifiedSince(listURL string, modifiedSince *time.Time) string {
	if modifiedSince == nil {
		return listURL
	}

	parsed, err := url.Parse(listURL)
	if err != nil {
		return listURL
	}

	q := parsed.Query()
	q.Set("modified_since", modifiedSince.UTC().Format(time.RFC3339))
	parsed.RawQuery = q.Encode()
	return parsed.String()
}
