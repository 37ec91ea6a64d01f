package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/models"
)

// lookupStore stubs the single storage method Resolve falls through to
type lookupStore struct {
	interfaces.EntityStorage
	ids   map[string]string
	calls int
}

func (s *lookupStore) LookupID(ctx context.Context, kind models.EntityKind, externalID string) (string, error) {
	s.calls++
	id, ok := s.ids[string(kind)+"|"+externalID]
	if !ok {
		return "", interfaces.ErrNotFound
	}
	return id, nil
}

func TestIdentityCachePositiveClaimsOnly(t *testing.T) {
	cache := NewIdentityCache()

	_, ok := cache.Get(models.KindPerson, "https://x/person/1")
	assert.False(t, ok)

	cache.Put(models.KindPerson, "https://x/person/1", "p-1")
	id, ok := cache.Get(models.KindPerson, "https://x/person/1")
	assert.True(t, ok)
	assert.Equal(t, "p-1", id)

	// Same external id under a different kind is a distinct claim
	_, ok = cache.Get(models.KindMeeting, "https://x/person/1")
	assert.False(t, ok)
}

func TestResolveFallsThroughToStoreAndCaches(t *testing.T) {
	cache := NewIdentityCache()
	store := &lookupStore{ids: map[string]string{"Paper|https://x/paper/1": "pa-1"}}

	id, err := cache.Resolve(context.Background(), store, models.KindPaper, "https://x/paper/1")
	require.NoError(t, err)
	assert.Equal(t, "pa-1", id)
	assert.Equal(t, 1, store.calls)

	// The store hit is now a cached claim
	_, err = cache.Resolve(context.Background(), store, models.KindPaper, "https://x/paper/1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
}

func TestResolveAbsenceAlwaysChecksStore(t *testing.T) {
	cache := NewIdentityCache()
	store := &lookupStore{ids: map[string]string{}}

	_, err := cache.Resolve(context.Background(), store, models.KindPaper, "https://x/paper/9")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	// A miss is never cached as absent; the row may appear later
	store.ids["Paper|https://x/paper/9"] = "pa-9"
	id, err := cache.Resolve(context.Background(), store, models.KindPaper, "https://x/paper/9")
	require.NoError(t, err)
	assert.Equal(t, "pa-9", id)
}

func TestResolveEmptyExternalID(t *testing.T) {
	cache := NewIdentityCache()
	store := &lookupStore{}

	_, err := cache.Resolve(context.Background(), store, models.KindPaper, "")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	assert.Equal(t, 0, store.calls)
}
