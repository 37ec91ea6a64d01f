package models

import (
	"strings"
)

// EntityKind identifies an OParl entity type. Values match the trailing
// segment of the OParl type URL (e.g. "https://schema.oparl.org/1.1/Meeting").
type EntityKind string

const (
	KindSystem          EntityKind = "System"
	KindBody            EntityKind = "Body"
	KindOrganization    EntityKind = "Organization"
	KindPerson          EntityKind = "Person"
	KindMembership      EntityKind = "Membership"
	KindMeeting         EntityKind = "Meeting"
	KindPaper           EntityKind = "Paper"
	KindAgendaItem      EntityKind = "AgendaItem"
	KindFile            EntityKind = "File"
	KindLocation        EntityKind = "Location"
	KindConsultation    EntityKind = "Consultation"
	KindLegislativeTerm EntityKind = "LegislativeTerm"
	KindUnknown         EntityKind = ""
)

// SyncedKinds lists the kinds the per-body pipelines mirror, in dependency
// order (parents before children).
var SyncedKinds = []EntityKind{
	KindOrganization,
	KindPerson,
	KindMembership,
	KindMeeting,
	KindPaper,
	KindLocation,
	KindAgendaItem,
	KindFile,
	KindConsultation,
	KindLegislativeTerm,
}

// KindFromTypeURL derives the entity kind from an OParl type URL.
// Returns KindUnknown when the suffix names no known kind.
func KindFromTypeURL(typeURL string) EntityKind {
	idx := strings.LastIndex(typeURL, "/")
	if idx < 0 || idx == len(typeURL)-1 {
		return KindUnknown
	}

	switch EntityKind(typeURL[idx+1:]) {
	case KindSystem:
		return KindSystem
	case KindBody:
		return KindBody
	case KindOrganization:
		return KindOrganization
	case KindPerson:
		return KindPerson
	case KindMembership:
		return KindMembership
	case KindMeeting:
		return KindMeeting
	case KindPaper:
		return KindPaper
	case KindAgendaItem:
		return KindAgendaItem
	case KindFile:
		return KindFile
	case KindLocation:
		return KindLocation
	case KindConsultation:
		return KindConsultation
	case KindLegislativeTerm:
		return KindLegislativeTerm
	default:
		return KindUnknown
	}
}
