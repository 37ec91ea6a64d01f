package sync

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/models"
)

// fakeFetcher serves canned pages per list URL, recording what was asked
type fakeFetcher struct {
	mu      gosync.Mutex
	objects map[string]json.RawMessage
	lists   map[string][][]json.RawMessage // url -> pages
	listErr map[string]error

	listCalls     []string
	modifiedSince map[string]*time.Time
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		objects:       map[string]json.RawMessage{},
		lists:         map[string][][]json.RawMessage{},
		listErr:       map[string]error{},
		modifiedSince: map[string]*time.Time{},
	}
}

func (f *fakeFetcher) FetchObject(ctx context.Context, url string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[url]
	if !ok {
		return nil, fmt.Errorf("no object at %s", url)
	}
	return raw, nil
}

func (f *fakeFetcher) FetchList(ctx context.Context, url string, modifiedSince *time.Time) interfaces.PageIterator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, url)
	f.modifiedSince[url] = modifiedSince
	if err, ok := f.listErr[url]; ok {
		return &fakeIterator{err: err}
	}
	return &fakeIterator{pages: f.lists[url]}
}

func (f *fakeFetcher) FetchListAll(ctx context.Context, url string, modifiedSince *time.Time) ([]json.RawMessage, error) {
	it := f.FetchList(ctx, url, modifiedSince)
	var items []json.RawMessage
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

func (f *fakeFetcher) Stats() models.RequestStats {
	return models.RequestStats{}
}

type fakeIterator struct {
	pages [][]json.RawMessage
	pos   int
	err   error
}

func (it *fakeIterator) Next(ctx context.Context) (*interfaces.Page, bool, error) {
	if it.err != nil {
		err := it.err
		it.err = nil
		return nil, false, err
	}
	if it.pos >= len(it.pages) {
		return nil, false, nil
	}
	page := &interfaces.Page{Items: it.pages[it.pos]}
	it.pos++
	return page, true, nil
}
