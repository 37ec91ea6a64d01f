package sync

import (
	"context"
	"errors"
	"sync"

	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/models"
)

// IdentityCache memoizes (kind, external id) -> surrogate id within one body
// job. It holds positive claims only: a miss means "unknown", never "absent",
// so absence checks always go to the store.
type IdentityCache struct {
	mu  sync.RWMutex
	ids map[string]string
}

func NewIdentityCache() *IdentityCache {
	return &IdentityCache{ids: make(map[string]string)}
}

func cacheKey(kind models.EntityKind, externalID string) string {
	return string(kind) + "|" + externalID
}

// Get returns a cached surrogate id, if one was claimed
func (c *IdentityCache) Get(kind models.EntityKind, externalID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[cacheKey(kind, externalID)]
	return id, ok
}

// Put records a surrogate id claim
func (c *IdentityCache) Put(kind models.EntityKind, externalID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[cacheKey(kind, externalID)] = id
}

// Resolve returns the surrogate id for an external id, consulting the cache
// first and falling through to the store. Store hits are cached.
// ErrNotFound means the row genuinely does not exist.
func (c *IdentityCache) Resolve(ctx context.Context, store interfaces.EntityStorage, kind models.EntityKind, externalID string) (string, error) {
	if externalID == "" {
		return "", interfaces.ErrNotFound
	}

	if id, ok := c.Get(kind, externalID); ok {
		return id, nil
	}

	id, err := store.LookupID(ctx, kind, externalID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return "", interfaces.ErrNotFound
		}
		return "", err
	}

	c.Put(kind, externalID, id)
	return id, nil
}
