package model

// PrewarmConfig is one commonly requested map view kept warm in the cache.
type PrewarmConfig struct {
	Name    string
	Params  map[string][]string
	Cadence string
}

// DefaultPrewarmConfigs lists the pre-warmed views. Cadences are staggered
// one minute apart inside each quarter hour.
func DefaultPrewarmConfigs(minObservationDate string) []PrewarmConfig {
	base := func(extra map[string][]string) map[string][]string {
		params := map[string][]string{
			"visible":                  {"true"},
			"min_observation_datetime": {minObservationDate},
		}
		for k, v := range extra {
			params[k] = v
		}
		return params
	}

	return []PrewarmConfig{
		{Name: "default", Params: base(nil), Cadence: "*/15 * * * *"},
		{Name: "anb-true", Params: base(map[string][]string{"anbAreasActief": {"true"}}), Cadence: "1-59/15 * * * *"},
		{Name: "anb-false", Params: base(map[string][]string{"anbAreasActief": {"false"}}), Cadence: "2-59/15 * * * *"},
		{Name: "status-open", Params: base(map[string][]string{"nestStatus": {"open"}}), Cadence: "3-59/15 * * * *"},
		{Name: "status-reserved", Params: base(map[string][]string{"nestStatus": {"reserved"}}), Cadence: "4-59/15 * * * *"},
		{Name: "status-eradicated", Params: base(map[string][]string{"nestStatus": {"eradicated"}}), Cadence: "5-59/15 * * * *"},
		{Name: "status-visited", Params: base(map[string][]string{"nestStatus": {"visited"}}), Cadence: "6-59/15 * * * *"},
		{Name: "type-secondary", Params: base(map[string][]string{"nestType": {string(NestTypeActiveSecondary)}}), Cadence: "7-59/15 * * * *"},
	}
}
