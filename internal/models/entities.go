package models

import (
	"encoding/json"
	"time"
)

// Source is one registered OParl endpoint. Its URL is the natural key.
type Source struct {
	ID           string
	URL          string
	Name         string
	RawJSON      json.RawMessage // The upstream System document
	LastSync     *time.Time
	LastFullSync *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Body is one OParl body (typically a municipal council) within a source
type Body struct {
	ID            string
	SourceID      string
	ExternalID    string
	Name          string
	ShortName     string
	Website       string
	Lists         BodyLists
	OparlCreated  *time.Time
	OparlModified *time.Time
	RawJSON       json.RawMessage
	LastSync      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EntityRow is the common shape of a mirrored per-kind row as read back from
// the store. Kind-specific columns are exposed through Content pointers on
// demand; most callers only need identity and timestamps.
type EntityRow struct {
	ID            string
	BodyID        string
	ExternalID    string
	OparlCreated  *time.Time
	OparlModified *time.Time
	RawJSON       json.RawMessage
	UpdatedAt     time.Time
}

// FileRow exposes the file columns the no-clobber invariant is defined over
type FileRow struct {
	EntityRow
	PaperID     *string
	MeetingID   *string
	FileName    string
	MimeType    string
	Size        int64
	AccessURL   string
	DownloadURL string
}

// MembershipRow exposes the mandatory FK columns for integrity checks
type MembershipRow struct {
	EntityRow
	PersonID       string
	OrganizationID string
	Role           string
	VotingRight    bool
}

// MeetingRow exposes the meeting columns incremental tests compare
type MeetingRow struct {
	EntityRow
	Name         string
	MeetingState string
	Cancelled    bool
	LocationID   *string
	Start        *time.Time
	End          *time.Time
}
