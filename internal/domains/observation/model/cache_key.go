package model

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// GeoJSONCacheNamespace prefixes every dynamic GeoJSON cache entry.
	GeoJSONCacheNamespace = "vespadb::/observations/dynamic-geojson"
	// GeoJSONCachePattern matches the whole namespace for invalidation.
	GeoJSONCachePattern = GeoJSONCacheNamespace + "*"
	// RebuildLockKey guards the pre-warm fan-out.
	RebuildLockKey = "vespadb::rebuild_geojson_lock"
)

const observationCachePrefix = "vespadb::observations::"

// ObservationCachePattern matches every per-observation detail entry.
const ObservationCachePattern = observationCachePrefix + "*"

// ObservationCacheKey is the per-observation detail entry.
func ObservationCacheKey(id int64) string {
	return observationCachePrefix + strconv.FormatInt(id, 10)
}

// paramAliases maps lowercased frontend parameter names to filter names.
var paramAliases = map[string]string{
	"anbareasactief": "anb",
	"neststatus":     "nest_status",
	"nesttype":       "nest_type",
}

// CanonicalParamName lowercases name and resolves frontend aliases.
func CanonicalParamName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := paramAliases[lower]; ok {
		return alias
	}
	return lower
}

func isDatetimeParam(name string) bool {
	return strings.HasSuffix(name, "_datetime") || strings.HasSuffix(name, "_date")
}

var datetimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDatetimeParam accepts RFC 3339 or a naive date/datetime. Naive values
// are interpreted in loc.
func ParseDatetimeParam(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), true
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// resolvedParam is one parameter after alias resolution.
type resolvedParam struct {
	name  string
	value string
}

// resolveParams maps raw names to canonical names and keeps the first
// element of each value list. When aliases collide, the first non-empty one
// in sorted raw-name order wins. Filtering and cache keys both use it.
func resolveParams(params map[string][]string) []resolvedParam {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]bool, len(names))
	out := make([]resolvedParam, 0, len(names))
	for _, raw := range names {
		values := params[raw]
		if len(values) == 0 {
			continue
		}
		value := strings.TrimSpace(values[0])
		name := CanonicalParamName(raw)
		if value == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, resolvedParam{name: name, value: value})
	}
	return out
}

// normalizeParamValue reduces a value to its canonical string: datetimes as
// UTC RFC 3339, everything else lowercased.
func normalizeParamValue(name, value string, loc *time.Location) string {
	if isDatetimeParam(name) {
		if t, ok := ParseDatetimeParam(value, loc); ok {
			return t.Format(time.RFC3339)
		}
	}
	return strings.ToLower(value)
}

// NormalizeParams canonicalizes names and values.
func NormalizeParams(params map[string][]string, loc *time.Location) map[string]string {
	resolved := resolveParams(params)
	out := make(map[string]string, len(resolved))
	for _, p := range resolved {
		out[p.name] = normalizeParamValue(p.name, p.value, loc)
	}
	return out
}

// GeoJSONCacheKey derives the cache key shared by the request path and the
// pre-warm tasks.
func GeoJSONCacheKey(params map[string][]string, loc *time.Location) string {
	normalized := NormalizeParams(params, loc)

	names := make([]string, 0, len(normalized))
	for name := range normalized {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(GeoJSONCacheNamespace)
	b.WriteByte('?')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(normalized[name])
	}
	return b.String()
}
