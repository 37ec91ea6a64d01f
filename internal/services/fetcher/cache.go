package fetcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// CachedResponse is one validated upstream response kept for conditional
// requests. The body is replayed when the server answers 304 Not Modified.
type CachedResponse struct {
	URL          string `badgerhold:"key"`
	ETag         string
	LastModified string
	Body         []byte
	StoredAt     time.Time
}

// ResponseCache is the Badger-backed HTTP validation cache
type ResponseCache struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// NewResponseCache opens the cache at the given directory
func NewResponseCache(path string, logger arbor.ILogger) (*ResponseCache, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open response cache: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Response cache initialized")

	return &ResponseCache{
		store:  store,
		logger: logger,
	}, nil
}

// Get returns the cached response for a URL, or nil when absent
func (c *ResponseCache) Get(url string) *CachedResponse {
	var entry CachedResponse
	err := c.store.Get(url, &entry)
	if err == badgerhold.ErrNotFound {
		return nil
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("Response cache read failed")
		return nil
	}
	return &entry
}

// Put stores a validated response. Responses without a validator are not
// cached; a conditional request could never reuse them.
func (c *ResponseCache) Put(url, etag, lastModified string, body []byte) {
	if etag == "" && lastModified == "" {
		return
	}

	entry := &CachedResponse{
		URL:          url,
		ETag:         etag,
		LastModified: lastModified,
		Body:         body,
		StoredAt:     time.Now(),
	}

	if err := c.store.Upsert(url, entry); err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("Response cache write failed")
	}
}

// Close closes the underlying store
func (c *ResponseCache) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}
