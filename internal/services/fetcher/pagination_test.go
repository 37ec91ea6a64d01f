package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listServer serves a three-page OParl list and records the query strings it
// was asked with.
func listServer(t *testing.T, queries *[]string) *httptest.Server {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*queries = append(*queries, r.URL.RawQuery)

		page := r.URL.Query().Get("page")
		var data []string
		next := ""
		switch page {
		case "", "1":
			data = []string{"a", "b"}
			next = server.URL + "/list?page=2"
		case "2":
			data = []string{"c"}
			next = server.URL + "/list?page=3"
		case "3":
			data = []string{"d"}
		default:
			t.Errorf("unexpected page %q", page)
		}

		items := make([]json.RawMessage, len(data))
		for i, id := range data {
			items[i] = json.RawMessage(fmt.Sprintf(`{"id": %q}`, id))
		}
		resp := map[string]any{"data": items}
		if next != "" {
			resp["links"] = map[string]string{"next": next}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	return server
}

func TestFetchListPreservesOrderAcrossPages(t *testing.T) {
	var queries []string
	server := listServer(t, &queries)
	defer server.Close()

	client := testClient(4, nil)
	items, err := client.FetchListAll(context.Background(), server.URL+"/list", nil)
	require.NoError(t, err)
	require.Len(t, items, 4)

	var ids []string
	for _, raw := range items {
		var doc struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(raw, &doc))
		ids = append(ids, doc.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestFetchListIsLazy(t *testing.T) {
	var queries []string
	server := listServer(t, &queries)
	defer server.Close()

	client := testClient(4, nil)
	it := client.FetchList(context.Background(), server.URL+"/list", nil)

	assert.Empty(t, queries, "no request before the first Next")

	page, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, page.Items, 2)
	assert.Len(t, queries, 1, "exactly one page fetched")
}

func TestFetchListAppendsModifiedSince(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("modified_since")
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer server.Close()

	since := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)
	client := testClient(4, nil)
	items, err := client.FetchListAll(context.Background(), server.URL, &since)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, "2024-03-01T07:30:00Z", gotQuery)
}

func TestFetchListMalformedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer server.Close()

	client := testClient(4, nil)
	it := client.FetchList(context.Background(), server.URL, nil)

	_, _, err := it.Next(context.Background())
	require.Error(t, err)
	assert.True(t, IsPermanent(err))

	// The iterator is spent after an error
	_, ok, err := it.Next(context.Background())
	assert.False(t, ok)
	assert.NoError(t, err)
}
