package model

// City is a geocoding cache entry, unique on (name, state, country).
// Entries are created or refreshed by provider lookups and bulk seeders
// and are never deleted by the pipeline.
type City struct {
	Name      string
	State     string
	Country   string
	Latitude  *float64
	Longitude *float64
	Timezone  string
}
