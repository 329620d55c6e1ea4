// Package mapper turns upstream feed records into observations. Mapping is
// pure apart from the read-only region lookup.
package mapper

import (
	"strings"
	"time"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/feed"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
)

// Upstream attribute ids.
const (
	AttrNestHeight   = 329
	AttrNestSize     = 330
	AttrNestLocation = 331
	AttrTreated      = 367
	AttrNestType     = 369
)

// Locator resolves the derived geo fields of a WGS84 point.
type Locator interface {
	Locate(lon, lat float64) (municipalityID, provinceID *int64, anb bool)
}

type Mapper struct {
	locator  Locator
	loc      *time.Location
	keywords []string
}

// New builds a mapper. loc is the civil timezone of naive feed timestamps;
// keywords are matched case-insensitively against the notes.
func New(locator Locator, loc *time.Location, keywords []string) *Mapper {
	upper := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToUpper(strings.TrimSpace(k)); k != "" {
			upper = append(upper, k)
		}
	}
	return &Mapper{locator: locator, loc: loc, keywords: upper}
}

// Map converts rec. priorEradication reports whether an eradication date is
// already stored for this external id; it suppresses eradication inference.
// A *model.MappingRejection is returned for records that must be skipped.
func (m *Mapper) Map(rec feed.Record, priorEradication bool) (*model.Observation, error) {
	if rec.ID == nil {
		return nil, model.NewMappingRejection("unknown", "missing id")
	}
	id := *rec.ID

	switch {
	case strings.TrimSpace(rec.Date) == "":
		return nil, model.NewMappingRejection(id, "missing date")
	case rec.Point == nil || len(rec.Point.Coordinates) < 2:
		return nil, model.NewMappingRejection(id, "missing point")
	case strings.TrimSpace(rec.Created) == "":
		return nil, model.NewMappingRejection(id, "missing created")
	case strings.TrimSpace(rec.Modified) == "":
		return nil, model.NewMappingRejection(id, "missing modified")
	}

	observed, err := m.observationDatetime(rec.Date, rec.Time)
	if err != nil {
		return nil, model.NewMappingRejection(id, "invalid date/time: %v", err)
	}
	created, err := m.parseTimestamp(rec.Created)
	if err != nil {
		return nil, model.NewMappingRejection(id, "invalid created: %v", err)
	}
	modified, err := m.parseTimestamp(rec.Modified)
	if err != nil {
		return nil, model.NewMappingRejection(id, "invalid modified: %v", err)
	}

	lon, lat := rec.Point.Coordinates[0], rec.Point.Coordinates[1]
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return nil, model.NewMappingRejection(id, "point out of range: %v,%v", lon, lat)
	}

	obs := &model.Observation{
		ExternalID:          &id,
		Source:              model.SourceWaarnemingen,
		Location:            model.Point{Lon: lon, Lat: lat},
		ObservationDatetime: observed,
		Species:             rec.Species,
		Visible:             true,
		WNCreatedDatetime:   &created,
		WNModifiedDatetime:  &modified,
		WNValidationStatus:  model.ValidationStatusFromCode(rec.ValidationStatus),
		Notes:               rec.Notes,
		Images:              rec.Photos,
	}
	if obs.Images == nil {
		obs.Images = []string{}
	}
	if rec.Nest != nil {
		obs.WNClusterID = rec.Nest.ID
	}
	if rec.User != nil {
		obs.ObserverName = rec.User.Name
		obs.ObserverEmail = rec.User.Email
		obs.ObserverPhoneNumber = rec.User.PhoneNumber
	}

	treated, hasTreated := applyAttributes(obs, rec.Attributes)

	infer := m.notesMentionEradication(rec.Notes)
	if hasTreated {
		infer = treated
	}
	if infer && !priorEradication {
		m.markEradicated(obs)
	}

	if m.locator != nil {
		obs.MunicipalityID, obs.ProvinceID, obs.ANB = m.locator.Locate(lon, lat)
	}
	return obs, nil
}

// applyAttributes maps attribute values onto obs and reports the treated
// flag when the record carries one.
func applyAttributes(obs *model.Observation, attrs []feed.Attribute) (treated, hasTreated bool) {
	for _, a := range attrs {
		value := string(a.Value)
		switch attributeKey(a) {
		case AttrNestHeight:
			obs.NestHeight = model.LookupNestHeight(value)
		case AttrNestSize:
			obs.NestSize = model.LookupNestSize(value)
		case AttrNestLocation:
			obs.NestLocation = model.LookupNestLocation(value)
		case AttrNestType:
			obs.NestType = model.LookupNestType(value)
		case AttrTreated:
			if t, ok := parseTreated(value); ok {
				treated, hasTreated = t, true
			}
		default:
			switch strings.TrimSpace(a.Name) {
			case "Resultaat":
				obs.EradicationResult = model.LookupEradicationResult(value)
			case "Problemen":
				obs.EradicationProblems = model.LookupEradicationProblem(value)
			case "Methode":
				obs.EradicationMethod = model.LookupEradicationMethod(value)
			case "Product":
				obs.EradicationProduct = model.LookupEradicationProduct(value)
			}
		}
	}
	return treated, hasTreated
}

var attributeNames = map[string]int{
	"Nesthoogte":  AttrNestHeight,
	"Nestgrootte": AttrNestSize,
	"Nestplaats":  AttrNestLocation,
	"Nesttype":    AttrNestType,
	"Behandeld":   AttrTreated,
}

// attributeKey prefers the numeric id and falls back to the display name.
func attributeKey(a feed.Attribute) int {
	switch a.Attribute {
	case AttrNestHeight, AttrNestSize, AttrNestLocation, AttrNestType, AttrTreated:
		return a.Attribute
	}
	return attributeNames[strings.TrimSpace(a.Name)]
}

func parseTreated(value string) (treated, ok bool) {
	switch model.NormalizeLabel(value) {
	case "ja", "yes", "true", "1", "behandeld", "bestreden":
		return true, true
	case "nee", "no", "false", "0", "niet behandeld":
		return false, true
	}
	return false, false
}

func (m *Mapper) notesMentionEradication(notes string) bool {
	if notes == "" || len(m.keywords) == 0 {
		return false
	}
	upper := strings.ToUpper(notes)
	for _, k := range m.keywords {
		if strings.Contains(upper, k) {
			return true
		}
	}
	return false
}

// markEradicated synthesizes the eradication marker. The date is the civil
// observation date; a result mapped from the attributes is kept.
func (m *Mapper) markEradicated(obs *model.Observation) {
	local := obs.ObservationDatetime.In(m.loc)
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	obs.EradicationDate = &date
	obs.EradicatorName = model.SentinelEradicatorName
	if obs.EradicationResult == "" {
		obs.EradicationResult = model.EradicationSuccessful
	}
}

var timeLayouts = []string{"15:04:05", "15:04"}

// observationDatetime combines the date and optional time fields, read in
// the civil timezone, and returns UTC.
func (m *Mapper) observationDatetime(date string, clock *string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), m.loc)
	if err != nil {
		return time.Time{}, err
	}
	if clock == nil || strings.TrimSpace(*clock) == "" {
		return day.UTC(), nil
	}

	var tod time.Time
	for _, layout := range timeLayouts {
		if tod, err = time.Parse(layout, strings.TrimSpace(*clock)); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, m.loc).UTC(), nil
}

// parseTimestamp accepts RFC 3339 as is and reads naive timestamps in the
// civil timezone.
func (m *Mapper) parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, m.loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
