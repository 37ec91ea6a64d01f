package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/curia/internal/common"
	"github.com/ternarybob/curia/internal/interfaces"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	service := NewService(common.GetLogger())
	defer service.Close()

	var calls atomic.Int32
	done := make(chan struct{}, 2)
	handler := func(ctx context.Context, event interfaces.Event) error {
		calls.Add(1)
		done <- struct{}{}
		return nil
	}

	require.NoError(t, service.Subscribe(interfaces.EventNewPaper, handler))
	require.NoError(t, service.Subscribe(interfaces.EventNewPaper, handler))

	err := service.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventNewPaper,
		Payload: "https://x/paper/1",
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not run")
		}
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestPublishIsFireAndForget(t *testing.T) {
	service := NewService(common.GetLogger())
	defer service.Close()

	release := make(chan struct{})
	require.NoError(t, service.Subscribe(interfaces.EventSyncCompleted,
		func(ctx context.Context, event interfaces.Event) error {
			<-release
			return nil
		}))

	start := time.Now()
	err := service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventSyncCompleted})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "publisher must not wait on handlers")
	close(release)
}

func TestPublishSurvivesPanickingHandler(t *testing.T) {
	service := NewService(common.GetLogger())
	defer service.Close()

	done := make(chan struct{})
	require.NoError(t, service.Subscribe(interfaces.EventNewMeeting,
		func(ctx context.Context, event interfaces.Event) error {
			panic("handler bug")
		}))
	require.NoError(t, service.Subscribe(interfaces.EventNewMeeting,
		func(ctx context.Context, event interfaces.Event) error {
			close(done)
			return nil
		}))

	require.NoError(t, service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventNewMeeting}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sibling handler starved by panic")
	}
}

func TestPublishSyncAggregatesErrors(t *testing.T) {
	service := NewService(common.GetLogger())
	defer service.Close()

	require.NoError(t, service.Subscribe(interfaces.EventSyncFailed,
		func(ctx context.Context, event interfaces.Event) error {
			return fmt.Errorf("boom")
		}))
	require.NoError(t, service.Subscribe(interfaces.EventSyncFailed,
		func(ctx context.Context, event interfaces.Event) error {
			return nil
		}))

	err := service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventSyncFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 errors")
}

func TestSubscribeNilHandler(t *testing.T) {
	service := NewService(common.GetLogger())
	defer service.Close()

	assert.Error(t, service.Subscribe(interfaces.EventNewPaper, nil))
}

func TestPublishWithoutSubscribers(t *testing.T) {
	service := NewService(common.GetLogger())
	defer service.Close()

	assert.NoError(t, service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventNewPaper}))
	assert.NoError(t, service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventNewPaper}))
}
