package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventSyncStarted   EventType = "sync_started"
	EventBodyCompleted EventType = "body_completed"
	EventSyncCompleted EventType = "sync_completed"
	EventSyncFailed    EventType = "sync_failed"
	EventNewMeeting    EventType = "new_meeting"
	EventNewPaper      EventType = "new_paper"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the pub/sub event bus. Publishing is fire-and-forget:
// a failing subscriber never aborts the sync.
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
