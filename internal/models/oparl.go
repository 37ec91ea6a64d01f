package models

import (
	"encoding/json"
)

// ObjectList is the OParl list envelope: a page of items plus cursor links.
type ObjectList struct {
	Data       []json.RawMessage `json:"data"`
	Links      ListLinks         `json:"links"`
	Pagination ListPagination    `json:"pagination"`
}

// ListLinks carries the pagination cursor URLs of a list page
type ListLinks struct {
	First string `json:"first,omitempty"`
	Next  string `json:"next,omitempty"`
	Last  string `json:"last,omitempty"`
	Self  string `json:"self,omitempty"`
}

// ListPagination carries the optional pagination counters of a list page
type ListPagination struct {
	TotalPages      int `json:"totalPages,omitempty"`
	TotalElements   int `json:"totalElements,omitempty"`
	ElementsPerPage int `json:"elementsPerPage,omitempty"`
	CurrentPage     int `json:"currentPage,omitempty"`
}

// Envelope is the minimal shape shared by every OParl document. It is used
// for endpoint auto-detection and tombstone recognition before full
// processing.
type Envelope struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Deleted bool              `json:"deleted,omitempty"`
	Body    string            `json:"body,omitempty"` // System documents: URL of the body list
	Data    []json.RawMessage `json:"data,omitempty"` // Present when the document is itself a list
}

// BodyLists holds the ten per-kind list URLs a Body document exposes
type BodyLists struct {
	Organization    string `json:"organization,omitempty"`
	Person          string `json:"person,omitempty"`
	Membership      string `json:"membership,omitempty"`
	Meeting         string `json:"meeting,omitempty"`
	Paper           string `json:"paper,omitempty"`
	AgendaItem      string `json:"agendaItem,omitempty"`
	File            string `json:"file,omitempty"`
	Location        string `json:"locationList,omitempty"`
	Consultation    string `json:"consultation,omitempty"`
	LegislativeTerm string `json:"legislativeTermList,omitempty"`
}

// ForKind returns the list URL for a kind, or "" when the body does not
// expose that list.
func (l BodyLists) ForKind(kind EntityKind) string {
	switch kind {
	case KindOrganization:
		return l.Organization
	case KindPerson:
		return l.Person
	case KindMembership:
		return l.Membership
	case KindMeeting:
		return l.Meeting
	case KindPaper:
		return l.Paper
	case KindAgendaItem:
		return l.AgendaItem
	case KindFile:
		return l.File
	case KindLocation:
		return l.Location
	case KindConsultation:
		return l.Consultation
	case KindLegislativeTerm:
		return l.LegislativeTerm
	default:
		return ""
	}
}
