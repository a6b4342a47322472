// Package geocode resolves city/state/country triples to coordinates via
// a local cities cache backed by the Google Geocoding API.
package geocode

import (
	"context"
	"strings"
)

// Result holds the geocoding output for a lookup.
type Result struct {
	Latitude  float64
	Longitude float64
	Timezone  string // empty when the provider does not supply one
	Matched   bool
}

// Provider is a single external geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (*Result, error)
	Available() bool
}

// HasValidCoordinates reports whether both coordinates are present and in
// range (lat in [-90,90], lng in [-180,180]). (0,0) passes here; callers
// that treat 0 as the "not geocoded" sentinel exclude it themselves.
func HasValidCoordinates(lat, lng *float64) bool {
	if lat == nil || lng == nil {
		return false
	}
	return *lat >= -90 && *lat <= 90 && *lng >= -180 && *lng <= 180
}

// FormatAddress joins the non-empty parts of (city, state, country) into
// the free-text address sent to the provider.
func FormatAddress(city, state, country string) string {
	var parts []string
	for _, p := range []string{city, state, country} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}
