package model

import (
	"strconv"
	"strings"
	"time"
)

// GeoJSONFilter is the parsed form of the dynamic GeoJSON query parameters.
type GeoJSONFilter struct {
	MunicipalityIDs []int64
	ProvinceIDs     []int64

	MinCreated     *time.Time
	MaxCreated     *time.Time
	MinModified    *time.Time
	MaxModified    *time.Time
	MinObservation *time.Time
	MaxObservation *time.Time

	ANB          *bool
	Visible      *bool
	NestTypes    []string
	NestStatuses []Status
}

// ParseGeoJSONFilter builds a filter from raw query parameters. Aliases are
// resolved the same way as for the cache key; list filters accept comma
// separated values in their first element. Unknown parameters are ignored.
func ParseGeoJSONFilter(params map[string][]string, loc *time.Location) (GeoJSONFilter, error) {
	var f GeoJSONFilter
	for _, p := range resolveParams(params) {
		name, value := p.name, p.value

		var err error
		switch name {
		case "municipality_id":
			f.MunicipalityIDs, err = parseIDList(name, value)
		case "province_id":
			f.ProvinceIDs, err = parseIDList(name, value)
		case "min_created_datetime":
			f.MinCreated, err = parseTimeParam(name, value, loc)
		case "max_created_datetime":
			f.MaxCreated, err = parseTimeParam(name, value, loc)
		case "min_modified_datetime":
			f.MinModified, err = parseTimeParam(name, value, loc)
		case "max_modified_datetime":
			f.MaxModified, err = parseTimeParam(name, value, loc)
		case "min_observation_datetime":
			f.MinObservation, err = parseTimeParam(name, value, loc)
		case "max_observation_datetime":
			f.MaxObservation, err = parseTimeParam(name, value, loc)
		case "anb":
			f.ANB, err = parseBoolParam(name, value)
		case "visible":
			f.Visible, err = parseBoolParam(name, value)
		case "nest_type":
			for _, t := range splitList(value) {
				if !IsValidNestType(t) {
					return f, NewInvalidFilterError(name, t)
				}
				f.NestTypes = append(f.NestTypes, t)
			}
		case "nest_status":
			for _, s := range splitList(value) {
				switch st := Status(s); st {
				case StatusOpen, StatusReserved, StatusEradicated, StatusVisited:
					f.NestStatuses = append(f.NestStatuses, st)
				default:
					return f, NewInvalidFilterError(name, s)
				}
			}
		}
		if err != nil {
			return f, err
		}
	}
	return f, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDList(name, value string) ([]int64, error) {
	var ids []int64
	for _, p := range splitList(value) {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, NewInvalidFilterError(name, p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseTimeParam(name, value string, loc *time.Location) (*time.Time, error) {
	t, ok := ParseDatetimeParam(value, loc)
	if !ok {
		return nil, NewInvalidFilterError(name, value)
	}
	return &t, nil
}

func parseBoolParam(name, value string) (*bool, error) {
	b, err := strconv.ParseBool(strings.ToLower(value))
	if err != nil {
		return nil, NewInvalidFilterError(name, value)
	}
	return &b, nil
}
