package sqlite

import (
	"database/sql"
	"time"

	"github.com/ternarybob/curia/internal/models"
)

// entityTables maps each mirrored kind to its table. Bodies and sources have
// dedicated storages but share the generic readers.
var entityTables = map[models.EntityKind]string{
	models.KindBody:            "oparl_bodies",
	models.KindOrganization:    "organizations",
	models.KindPerson:          "persons",
	models.KindMembership:      "memberships",
	models.KindMeeting:         "meetings",
	models.KindPaper:           "papers",
	models.KindAgendaItem:      "agenda_items",
	models.KindFile:            "files",
	models.KindLocation:        "locations",
	models.KindConsultation:    "consultations",
	models.KindLegislativeTerm: "legislative_terms",
}

// timeText converts a timestamp to the RFC3339Nano UTC text the schema
// stores, or NULL when absent. Nanosecond text keeps strict-greater
// comparisons exact across a round trip.
func timeText(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimeText reads a stored timestamp column back into *time.Time
func parseTimeText(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func nowText() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullStr(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
