package interfaces

import "time"

// Clock abstracts wall-clock reads so sync-time bookkeeping is testable
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
