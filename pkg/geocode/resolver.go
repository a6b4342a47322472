package geocode

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/introhq/introhq/internal/model"
)

// CityStore is the cities-cache surface the resolver needs.
type CityStore interface {
	// FindCity returns the cached city matching name (case-insensitive)
	// and, when supplied, state/country (case-insensitive or stored
	// NULL). Returns model.ErrNotFound on miss.
	FindCity(ctx context.Context, name, state, country string) (*model.City, error)

	// UpsertCity inserts or refreshes a cache entry keyed by
	// (name, state, country).
	UpsertCity(ctx context.Context, city model.City) error
}

// Resolver answers city lookups from the cache first and falls back to
// an external provider, writing provider hits back through the cache.
type Resolver struct {
	cities   CityStore
	provider Provider
}

// NewResolver creates a Resolver over the given cache and provider.
func NewResolver(cities CityStore, provider Provider) *Resolver {
	return &Resolver{cities: cities, provider: provider}
}

// Resolve returns coordinates for a city/state/country triple.
// Cache hits with valid coordinates short-circuit the provider. Provider
// hits are upserted into the cache before returning. Provider failures
// and misses surface as model.ErrNotFound — never as a fatal error.
func (r *Resolver) Resolve(ctx context.Context, city, state, country string) (*Result, error) {
	name := strings.TrimSpace(city)
	if name == "" {
		return nil, model.ErrNotFound
	}

	cached, err := r.cities.FindCity(ctx, name, state, country)
	if err == nil && HasValidCoordinates(cached.Latitude, cached.Longitude) {
		return &Result{
			Latitude:  *cached.Latitude,
			Longitude: *cached.Longitude,
			Timezone:  cached.Timezone,
			Matched:   true,
		}, nil
	}
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	if r.provider == nil || !r.provider.Available() {
		return nil, model.ErrNotFound
	}

	result, err := r.provider.Geocode(ctx, FormatAddress(name, state, country))
	if err != nil {
		zap.L().Warn("geocode: provider lookup failed",
			zap.String("provider", r.provider.Name()),
			zap.String("city", name),
			zap.Error(err),
		)
		return nil, model.ErrNotFound
	}
	if result == nil || !result.Matched {
		return nil, model.ErrNotFound
	}

	lat, lng := result.Latitude, result.Longitude
	if upsertErr := r.cities.UpsertCity(ctx, model.City{
		Name:      name,
		State:     strings.TrimSpace(state),
		Country:   strings.TrimSpace(country),
		Latitude:  &lat,
		Longitude: &lng,
		Timezone:  result.Timezone,
	}); upsertErr != nil {
		// Cache write failure must not lose the provider result.
		zap.L().Warn("geocode: cache write-through failed",
			zap.String("city", name),
			zap.Error(upsertErr),
		)
	}

	return result, nil
}

// ResolveCached answers from the cache only, additionally requiring
// stored coordinates to be non-null and non-zero. Used by the sweep's
// first phase, which must not call the provider.
func (r *Resolver) ResolveCached(ctx context.Context, city, state, country string) (*Result, error) {
	name := strings.TrimSpace(city)
	if name == "" {
		return nil, model.ErrNotFound
	}

	cached, err := r.cities.FindCity(ctx, name, state, country)
	if err != nil {
		return nil, err
	}
	if !HasValidCoordinates(cached.Latitude, cached.Longitude) {
		return nil, model.ErrNotFound
	}
	// A stored (0,0) means "never geocoded", not the Gulf of Guinea.
	if *cached.Latitude == 0 || *cached.Longitude == 0 {
		return nil, model.ErrNotFound
	}

	return &Result{
		Latitude:  *cached.Latitude,
		Longitude: *cached.Longitude,
		Timezone:  cached.Timezone,
		Matched:   true,
	}, nil
}
