package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/curia/internal/common"
	"github.com/ternarybob/curia/internal/httpclient"
	"github.com/ternarybob/curia/internal/models"
)

// maxBodySize caps a single response read. OParl pages are small; anything
// beyond this is a misbehaving endpoint.
const maxBodySize = 32 * 1024 * 1024

// Client is the sole HTTP component of the sync engine. It enforces a
// per-host concurrency budget (semaphore) and a per-host request rate
// (token bucket), retries transient failures with backoff, honours
// Retry-After on 429, and serves conditional requests from the response
// cache.
type Client struct {
	httpClient  *http.Client
	retryPolicy *RetryPolicy
	cache       *ResponseCache // nil when caching is disabled
	logger      arbor.ILogger

	maxConcurrent     int
	requestsPerSecond int

	hostsMu    sync.Mutex
	semaphores map[string]chan struct{}
	limiters   map[string]*rate.Limiter

	requests  atomic.Int64
	cacheHits atomic.Int64
	retries   atomic.Int64
	failures  atomic.Int64
	bytesRead atomic.Int64
}

// NewClient creates a fetcher client from the OParl config section. The
// cache may be nil.
func NewClient(config *common.OParlConfig, cache *ResponseCache, logger arbor.ILogger) *Client {
	policy := NewRetryPolicy()
	if config.MaxRetries > 0 {
		policy.MaxAttempts = config.MaxRetries
	}
	if config.InitialBackoff > 0 {
		policy.InitialBackoff = config.InitialBackoff
	}
	if config.MaxBackoff > 0 {
		policy.MaxBackoff = config.MaxBackoff
	}

	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	requestsPerSecond := config.RequestsPerSecond
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}

	return &Client{
		httpClient:        httpclient.NewHTTPClientWithUserAgent(config.RequestTimeout, config.UserAgent),
		retryPolicy:       policy,
		cache:             cache,
		logger:            logger,
		maxConcurrent:     maxConcurrent,
		requestsPerSecond: requestsPerSecond,
		semaphores:        make(map[string]chan struct{}),
		limiters:          make(map[string]*rate.Limiter),
	}
}

// FetchObject performs a single GET for one OParl document
func (c *Client) FetchObject(ctx context.Context, rawURL string) (json.RawMessage, error) {
	return c.get(ctx, rawURL)
}

// Stats returns a snapshot of the request counters
func (c *Client) Stats() models.RequestStats {
	return models.RequestStats{
		Requests:  c.requests.Load(),
		CacheHits: c.cacheHits.Load(),
		Retries:   c.retries.Load(),
		Failures:  c.failures.Load(),
		BytesRead: c.bytesRead.Load(),
	}
}

// acquire blocks until the host's concurrency and rate budgets admit one
// more request. The returned release must be called when the request ends.
func (c *Client) acquire(ctx context.Context, host string) (func(), error) {
	c.hostsMu.Lock()
	sem, ok := c.semaphores[host]
	if !ok {
		sem = make(chan struct{}, c.maxConcurrent)
		c.semaphores[host] = sem
	}
	limiter, ok := c.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(c.requestsPerSecond), c.requestsPerSecond)
		c.limiters[host] = limiter
	}
	c.hostsMu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := limiter.Wait(ctx); err != nil {
		<-sem
		return nil, err
	}

	return func() { <-sem }, nil
}

// get fetches one URL with retries, budget enforcement and conditional
// caching. The returned bytes are the response body (or the cached body on
// a 304).
func (c *Client) get(ctx context.Context, rawURL string) (json.RawMessage, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Permanent: true, Err: fmt.Errorf("invalid URL: %w", err)}
	}

	release, err := c.acquire(ctx, parsed.Host)
	if err != nil {
		return nil, err
	}
	defer release()

	var cached *CachedResponse
	if c.cache != nil {
		cached = c.cache.Get(rawURL)
	}

	var body []byte
	attempt := 0

	statusCode, err := c.retryPolicy.ExecuteWithRetry(ctx, c.logger, func() attemptResult {
		if attempt > 0 {
			c.retries.Add(1)
		}
		attempt++

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if reqErr != nil {
			return attemptResult{err: reqErr}
		}
		req.Header.Set("Accept", "application/json")
		if cached != nil {
			if cached.ETag != "" {
				req.Header.Set("If-None-Match", cached.ETag)
			}
			if cached.LastModified != "" {
				req.Header.Set("If-Modified-Since", cached.LastModified)
			}
		}

		c.requests.Add(1)
		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return attemptResult{err: doErr}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotModified && cached != nil:
			c.cacheHits.Add(1)
			body = cached.Body
			return attemptResult{statusCode: http.StatusOK}

		case resp.StatusCode == http.StatusOK:
			data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if readErr != nil {
				return attemptResult{err: readErr}
			}
			c.bytesRead.Add(int64(len(data)))
			body = data
			if c.cache != nil {
				c.cache.Put(rawURL, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), data)
			}
			return attemptResult{statusCode: resp.StatusCode}

		default:
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return attemptResult{
				statusCode: resp.StatusCode,
				retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
			}
		}
	})

	if err != nil {
		c.failures.Add(1)
		permanent := statusCode >= 400 && statusCode < 500 && statusCode != http.StatusTooManyRequests && statusCode != http.StatusRequestTimeout
		return nil, &FetchError{URL: rawURL, StatusCode: statusCode, Permanent: permanent, Err: err}
	}

	return body, nil
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
