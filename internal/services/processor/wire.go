package processor

import (
	"encoding/json"
)

// Wire shapes for field extraction. Each mirrors the subset of the OParl
// document the store keeps as columns; everything else survives in raw_json.

type wireCommon struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Deleted  bool   `json:"deleted"`
	Created  string `json:"created"`
	Modified string `json:"modified"`
}

type wireBody struct {
	Name                string            `json:"name"`
	ShortName           string            `json:"shortName"`
	Website             string            `json:"website"`
	Organization        string            `json:"organization"`
	Person              string            `json:"person"`
	Membership          string            `json:"membership"`
	Meeting             string            `json:"meeting"`
	Paper               string            `json:"paper"`
	AgendaItem          string            `json:"agendaItem"`
	File                string            `json:"file"`
	LocationList        string            `json:"locationList"`
	Consultation        string            `json:"consultation"`
	LegislativeTermList string            `json:"legislativeTermList"`
	LegislativeTerm     []json.RawMessage `json:"legislativeTerm"`
}

type wireOrganization struct {
	Name             string `json:"name"`
	ShortName        string `json:"shortName"`
	Classification   string `json:"classification"`
	OrganizationType string `json:"organizationType"`
	StartDate        string `json:"startDate"`
	EndDate          string `json:"endDate"`
}

type wirePerson struct {
	Name       string            `json:"name"`
	GivenName  string            `json:"givenName"`
	FamilyName string            `json:"familyName"`
	Email      json.RawMessage   `json:"email"` // string or array of strings
	Membership []json.RawMessage `json:"membership"`
}

type wireMembership struct {
	Person       json.RawMessage `json:"person"`
	Organization json.RawMessage `json:"organization"`
	Role         string          `json:"role"`
	VotingRight  bool            `json:"votingRight"`
	StartDate    string          `json:"startDate"`
	EndDate      string          `json:"endDate"`
}

type wireMeeting struct {
	Name             string            `json:"name"`
	MeetingState     string            `json:"meetingState"`
	Cancelled        bool              `json:"cancelled"`
	Start            string            `json:"start"`
	End              string            `json:"end"`
	Location         json.RawMessage   `json:"location"`
	AgendaItem       []json.RawMessage `json:"agendaItem"`
	AuxiliaryFile    []json.RawMessage `json:"auxiliaryFile"`
	Invitation       json.RawMessage   `json:"invitation"`
	ResultsProtocol  json.RawMessage   `json:"resultsProtocol"`
	VerbatimProtocol json.RawMessage   `json:"verbatimProtocol"`
}

type wirePaper struct {
	Name          string            `json:"name"`
	Reference     string            `json:"reference"`
	PaperType     string            `json:"paperType"`
	Date          string            `json:"date"`
	MainFile      json.RawMessage   `json:"mainFile"`
	AuxiliaryFile []json.RawMessage `json:"auxiliaryFile"`
	Consultation  []json.RawMessage `json:"consultation"`
}

type wireAgendaItem struct {
	Meeting json.RawMessage `json:"meeting"`
	Number  string          `json:"number"`
	Order   int             `json:"order"`
	Name    string          `json:"name"`
	Public  bool            `json:"public"`
	Result  string          `json:"result"`
}

type wireFile struct {
	FileName    string          `json:"fileName"`
	Name        string          `json:"name"`
	MimeType    string          `json:"mimeType"`
	Size        int64           `json:"size"`
	AccessURL   string          `json:"accessUrl"`
	DownloadURL string          `json:"downloadUrl"`
	Paper       json.RawMessage `json:"paper"`   // URL, object, or array of either
	Meeting     json.RawMessage `json:"meeting"` // URL, object, or array of either
}

type wireLocation struct {
	Description   string          `json:"description"`
	StreetAddress string          `json:"streetAddress"`
	Room          string          `json:"room"`
	PostalCode    string          `json:"postalCode"`
	Locality      string          `json:"locality"`
	GeoJSON       json.RawMessage `json:"geojson"`
}

type wireConsultation struct {
	Paper         json.RawMessage `json:"paper"`
	Meeting       json.RawMessage `json:"meeting"`
	AgendaItem    json.RawMessage `json:"agendaItem"`
	Role          string          `json:"role"`
	Authoritative bool            `json:"authoritative"`
}

type wireLegislativeTerm struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// refID extracts an external id from a reference field that is either a URL
// string or an embedded object carrying an "id". Returns "" for anything
// else.
func refID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var url string
	if err := json.Unmarshal(raw, &url); err == nil {
		return url
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}

	return ""
}

// refFirstID extracts the first external id from a reference field that may
// additionally be an array of URLs or objects.
func refFirstID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return ""
		}
		return refID(list[0])
	}

	return refID(raw)
}

// isEmbedded reports whether a reference field carries a full object rather
// than a URL string.
func isEmbedded(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// firstString handles fields that upstream serves as either a string or an
// array of strings (person email, for one).
func firstString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}

	return ""
}
