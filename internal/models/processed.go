package models

import (
	"encoding/json"
	"time"
)

// ProcessedEntity is the typed result of parsing one raw OParl document.
// Exactly one of the per-kind content pointers is non-nil (none for
// tombstones). Embedded children surfaced by the processor are attached to
// Nested; they carry their own external ids and are upserted as first-class
// rows by the store.
type ProcessedEntity struct {
	Kind           EntityKind
	ExternalID     string
	BodyExternalID string // External id of the owning body, "" for Source-level entities
	Deleted        bool
	Created        *time.Time
	Modified       *time.Time
	RawJSON        json.RawMessage // Verbatim upstream payload, retained for re-processing

	Body            *BodyContent
	Organization    *OrganizationContent
	Person          *PersonContent
	Membership      *MembershipContent
	Meeting         *MeetingContent
	Paper           *PaperContent
	AgendaItem      *AgendaItemContent
	File            *FileContent
	Location        *LocationContent
	Consultation    *ConsultationContent
	LegislativeTerm *LegislativeTermContent

	Nested []*ProcessedEntity
}

// BodyContent holds the body columns plus the ten child list URLs
type BodyContent struct {
	Name      string
	ShortName string
	Website   string
	Lists     BodyLists
}

type OrganizationContent struct {
	Name             string
	ShortName        string
	Classification   string
	OrganizationType string
	StartDate        string
	EndDate          string
}

type PersonContent struct {
	Name       string
	GivenName  string
	FamilyName string
	Email      string
}

// MembershipContent references person and organization by external id; both
// must resolve before the row is written.
type MembershipContent struct {
	PersonExternalID       string
	OrganizationExternalID string
	Role                   string
	VotingRight            bool
	StartDate              string
	EndDate                string
}

type MeetingContent struct {
	Name         string
	MeetingState string
	Cancelled    bool
	Start        *time.Time
	End          *time.Time
}

type PaperContent struct {
	Name      string
	Reference string
	PaperType string
	Date      string
}

// AgendaItemContent references its meeting by external id; the FK is
// mandatory.
type AgendaItemContent struct {
	MeetingExternalID string
	Number            string
	Order             int
	Name              string
	Public            bool
	Result            string
}

// FileContent carries optional paper/meeting back-references by external id
type FileContent struct {
	PaperExternalID   string
	MeetingExternalID string
	FileName          string
	Name              string
	MimeType          string
	Size              int64
	AccessURL         string
	DownloadURL       string
}

type LocationContent struct {
	Description   string
	StreetAddress string
	Room          string
	PostalCode    string
	Locality      string
	GeoJSON       json.RawMessage
}

// ConsultationContent carries best-effort external-id references to the
// related paper, meeting and agenda item.
type ConsultationContent struct {
	PaperExternalID      string
	MeetingExternalID    string
	AgendaItemExternalID string
	Role                 string
	Authoritative        bool
}

type LegislativeTermContent struct {
	Name      string
	StartDate string
	EndDate   string
}
