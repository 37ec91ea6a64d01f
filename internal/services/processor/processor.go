package processor

import (
	"encoding/json"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curia/internal/models"
)

// Processor turns raw OParl JSON into typed ProcessedEntity values. It is
// stateless: the same input always yields the same output, and no call
// touches the network or the store.
type Processor struct {
	logger arbor.ILogger
}

// New creates a processor
func New(logger arbor.ILogger) *Processor {
	return &Processor{logger: logger}
}

// Process parses one raw document. The kind is read from the type URL.
// Returns nil for unknown types and for documents without an id; malformed
// timestamps alone never reject an item. The raw JSON is retained verbatim.
func (p *Processor) Process(raw json.RawMessage, bodyExternalID string) *models.ProcessedEntity {
	var common wireCommon
	if err := json.Unmarshal(raw, &common); err != nil {
		p.logger.Warn().Err(err).Msg("Skipping malformed OParl document")
		return nil
	}

	if common.ID == "" {
		p.logger.Warn().Msg("Skipping OParl document without id")
		return nil
	}

	entity := &models.ProcessedEntity{
		Kind:           models.KindFromTypeURL(common.Type),
		ExternalID:     common.ID,
		BodyExternalID: bodyExternalID,
		Deleted:        common.Deleted,
		Created:        ParseDateTime(common.Created),
		Modified:       ParseDateTime(common.Modified),
		RawJSON:        raw,
	}

	// Tombstones carry no payload beyond identity; the kind may even be
	// absent. They are delete commands, not documents.
	if common.Deleted {
		return entity
	}

	switch entity.Kind {
	case models.KindBody:
		p.processBody(entity, raw)
	case models.KindOrganization:
		p.processOrganization(entity, raw)
	case models.KindPerson:
		p.processPerson(entity, raw)
	case models.KindMembership:
		p.processMembership(entity, raw)
	case models.KindMeeting:
		p.processMeeting(entity, raw)
	case models.KindPaper:
		p.processPaper(entity, raw)
	case models.KindAgendaItem:
		p.processAgendaItem(entity, raw)
	case models.KindFile:
		p.processFile(entity, raw)
	case models.KindLocation:
		p.processLocation(entity, raw)
	case models.KindConsultation:
		p.processConsultation(entity, raw)
	case models.KindLegislativeTerm:
		p.processLegislativeTerm(entity, raw)
	default:
		p.logger.Debug().
			Str("type", common.Type).
			Str("id", common.ID).
			Msg("Skipping unknown OParl type")
		return nil
	}

	return entity
}

// processBody extracts the body columns and its ten child list URLs, and
// surfaces embedded legislative terms as nested entities.
func (p *Processor) processBody(entity *models.ProcessedEntity, raw json.RawMessage) {
	var w wireBody
	_ = json.Unmarshal(raw, &w)

	entity.Body = &models.BodyContent{
		Name:      w.Name,
		ShortName: w.ShortName,
		Website:   w.Website,
		Lists: models.BodyLists{
			Organization:    w.Organization,
			Person:          w.Person,
			Membership:      w.Membership,
			Meeting:         w.Meeting,
			Paper:           w.Paper,
			AgendaItem:      w.AgendaItem,
			File:            w.File,
			Location:        w.LocationList,
			Consultation:    w.Consultation,
			LegislativeTerm: w.LegislativeTermList,
		},
	}

	for _, termRaw := range w.LegislativeTerm {
		if !isEmbedded(termRaw) {
			continue
		}
		if nested := p.Process(termRaw, entity.ExternalID); nested != nil {
			entity.Nested = append(entity.Nested, nested)
		}
	}
}

func (p *Processor) processOrganization(entity *models.ProcessedEntity, raw json.RawMessage) {
	var w wireOrganization
	_ = json.Unmarshal(raw, &w)

	entity.Organization = &models.OrganizationContent{
		Name:             w.Name,
		ShortName:        w.ShortName,
		Classification:   w.Classification,
		OrganizationType: w.OrganizationType,
		StartDate:        w.StartDate,
		EndDate:          w.EndDate,
	}
}

// processPerson surfaces embedded memberships with the person's external id
// pre-bound, so the membership FK resolves even when upstream omits the
// person reference inside the embed.
func (p *Processor) processPerson(entity *models.ProcessedEntity, raw json.RawMessage) {
	var w wirePerson
	_ = json.Unmarshal(raw, &w)

	entity.Person = &models.PersonContent{
		Name:       w.Name,
		GivenName:  w.GivenName,
		FamilyName: w.FamilyName,
		Email:      firstString(w.Email),
	}

	for _, membershipRaw := range w.Membership {
		if !isEmbedded(membershipRaw) {
			continue
		}
		nested := p.Process(membershipRaw, entity.BodyExternalID)
		if nested == nil {
			continue
		}
		if nested.Membership != nil && nested.Membership.PersonExternalID == "" {
			nested.Membership.PersonExternalID = entity.ExternalID
		}
		entity.Nested = append(entity.Nested, nested)
	}
}

// processMembership reads the person reference from the document itself; an
// embedded membership missing it gets the parent id patched in afterwards.
func (p *Processor) processMembership(entity *models.ProcessedEntity, raw json.RawMessage) {
	var w wireMembership
	_ = json.Unmarshal(raw, &w)

	entity.Membership = &models.MembershipContent{
		PersonExternalID:       refID(w.Person),
		OrganizationExternalID: refID(w.Organization),
		Role:                   w.Role,
		VotingRight:            w.VotingRight,
		StartDate:              w.StartDate,
		EndDate:                w.EndDate,
	}
}

// processMeeting surfaces the embedded location, agenda items and the four
// file slots (auxiliary files, invitation, results and verbatim protocols).
func (p *Processor) processMeeting(entity *models.ProcessedEntity, raw json.RawMessage) {
	var w wireMeeting
	_ = json.Unmarshal(raw, &w)

	entity.Meeting = &models.MeetingContent{
		Name:         w.Name,
		MeetingState: w.MeetingState,
		Cancelled:    w.Cancelled,
		Start:        ParseDateTime(w.Start),
		End:          ParseDateTime(w.End),
	}

	if isEmbedded(w.Location) {
		if nested := p.Process(w.Location, entity.BodyExternalID); nested != nil {
			entity.Nested = append(entity.Nested, nested)
		}
	}

	for _, itemRaw := range w.AgendaItem {
		if !isEmbedded(itemRaw) {
			continue
		}
		nested := p.Process(itemRaw, entity.BodyExternalID)
		if nested == nil {
			continue
		}
		if nested.AgendaItem != nil && nested.AgendaItem.MeetingExternalID == "" {
			nested.AgendaItem.MeetingExternalID = entity.ExternalID
		}
		entity.Nested = append(entity.Nested, nested)
	}

	fileSlots := make([]json.RawMessage, 0, len(w.AuxiliaryFile)+3)
	fileSlots = append(fileSlots, w.AuxiliaryFile...)
	fileSlots = append(fileSlots, w.Invitation, w.ResultsProtocol, w.VerbatimProtocol)
	for _, fileRaw := range fileSlots {
		if !isEmbedded(fileRaw) {
			continue
		}
		nested := p.Process(fileRaw, entity.BodyExternalID)
		if nested == nil {
			continue
		}
		if nested.File != nil && nested.File.MeetingExternalID == "" {
			nested.File.MeetingExternalID = entity.ExternalID
		}
		entity.Nested = append(entity.Nested, nested)
	}
}

// processPaper surfaces the main/auxiliary files and consultations
func (p *Processor) processPaper(entity *models.ProcessedEntity, raw json.RawMessage) {
	var w wirePaper
	_ = json.Unmarshal(raw, &w)

	entity.Paper = &models.PaperContent{
		Name:      w.Name,
		Reference: w.Reference,
		PaperType: w.PaperType,
		Date:      w.Date,
	}

	fileSlots := make([]json.RawMessage, 0, len(w.AuxiliaryFile)+1)
	fileSlots = append(fileSlots, w.MainFile)
	fileSlots = append(fileSlots, w.AuxiliaryFile...)
	for _, fileRaw := range fileSlots {
		if !isEmbedded(fileRaw) {
			continue
		}
		nested := p.Process(fileRaw, entity.BodyExternalID)
		if nested == nil {
			continue
		}
		if nested.File != nil && nested.File.PaperExternalID == "" {
			nested.File.PaperExternalID = entity.ExternalID
		}
		entity.Nested = append(entity.Nested, nested)
	}

	for _, consultationRaw := range w.Consultation {
		if !isEmbedded(consultationRaw) {
			continue
		}
		nested := p.Process(consultationRaw, entity.BodyExternalID)
		if nested == nil {
			continue
		}
		if nested.Consultation != nil && nested.Consultation.PaperExternalID == "" {
			nested.Consultation.PaperExternalID = entity.ExternalID
		}
		entity.Nested = append(entity.Nested, nested)
	}
}

func (p *Processor) processAgendaItem(entity *models.ProcessedEntity, raw json.RawMessage) {
	var w wireAgendaItem
	_ = json.Unmarshal(raw, &w)

	entity.AgendaItem = &models.AgendaItemContent{
		MeetingExternalID: refID(w.Meeting),
		Number:            w.Number,
		Order:             w.Order,
		Name:              w.Name,
		Public:            w.Public,
		Result:            w.Result,
	}
}

func (p *Processor) processFile(entity *models.ProcessedEntity, raw json.RawMessage) {
	var w wireFile
	_ = json.Unmarshal(raw, &w)

	entity.File = &models.FileContent{
		PaperExternalID:   refFirstID(w.Paper),
		MeetingExternalID: refFirstID(w.Meeting),
		FileName:          w.FileName,
		Name:              w.Name,
		MimeType:          w.MimeType,
		Size:              w.Size,
		AccessURL:         w.AccessURL,
		DownloadURL:       w.DownloadURL,
	}
}

func (p *Processor) processLocation(entity *models.ProcessedEntity, raw json.RawMessage) {
	var w wireLocation
	_ = json.Unmarshal(raw, &w)

	entity.Location = &models.LocationContent{
		Description:   w.Description,
		StreetAddress: w.StreetAddress,
		Room:          w.Room,
		PostalCode:    w.PostalCode,
		Locality:      w.Locality,
		GeoJSON:       w.GeoJSON,
	}
}

func (p *Processor) processConsultation(entity *models.ProcessedEntity, raw json.RawMessage) {
	var w wireConsultation
	_ = json.Unmarshal(raw, &w)

	entity.Consultation = &models.ConsultationContent{
		PaperExternalID:      refID(w.Paper),
		MeetingExternalID:    refID(w.Meeting),
		AgendaItemExternalID: refID(w.AgendaItem),
		Role:                 w.Role,
		Authoritative:        w.Authoritative,
	}
}

func (p *Processor) processLegislativeTerm(entity *models.ProcessedEntity, raw json.RawMessage) {
	var w wireLegislativeTerm
	_ = json.Unmarshal(raw, &w)

	entity.LegislativeTerm = &models.LegislativeTermContent{
		Name:      w.Name,
		StartDate: w.StartDate,
		EndDate:   w.EndDate,
	}
}
