package processor

import (
	"time"
)

// datetimeLayouts are the timestamp forms observed across upstream OParl
// implementations. OParl mandates ISO-8601 but servers disagree on zone and
// precision.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDateTime normalizes an upstream timestamp string into UTC. Returns
// nil when the string is empty or unparseable; a malformed timestamp alone
// never fails an item.
func ParseDateTime(value string) *time.Time {
	if value == "" {
		return nil
	}

	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}

	return nil
}
