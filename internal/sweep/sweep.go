// Package sweep fills in missing contact coordinates after an import:
// a cache-only pass first, then provider-backed lookups for the rest.
package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/introhq/introhq/internal/model"
	"github.com/introhq/introhq/internal/store"
	"github.com/introhq/introhq/pkg/geocode"
)

// Resolver is the geocoding surface the sweep uses. ResolveCached never
// reaches the external provider.
type Resolver interface {
	Resolve(ctx context.Context, city, state, country string) (*geocode.Result, error)
	ResolveCached(ctx context.Context, city, state, country string) (*geocode.Result, error)
}

// Contacts is the store surface the sweep reads and writes.
type Contacts interface {
	ContactsNeedingGeocode(ctx context.Context, userID string) ([]model.Contact, error)
	UpdateCoordinates(ctx context.Context, updates []store.CoordinateUpdate) (int, error)
}

// Stats counts what one sweep accomplished.
type Stats struct {
	CacheHits       int
	APIResolved     int
	Failed          int
	ContactsUpdated int
}

// Sweeper runs the two-phase geocoding sweep for one user's contacts.
type Sweeper struct {
	contacts  Contacts
	resolver  Resolver
	callDelay time.Duration
}

// New creates a Sweeper. callDelay spaces out provider calls in the
// second phase.
func New(contacts Contacts, resolver Resolver, callDelay time.Duration) *Sweeper {
	if callDelay <= 0 {
		callDelay = 100 * time.Millisecond
	}
	return &Sweeper{contacts: contacts, resolver: resolver, callDelay: callDelay}
}

type cityTriple struct {
	city, state, country string
}

// Sweep geocodes the user's contacts that have a city but no usable
// coordinates. Phase one answers what it can from the cities cache in a
// single update pass; phase two re-reads the stragglers and calls the
// provider once per unique city, committing updates per city so a
// timeout keeps partial progress. Individual failures never abort the
// sweep; a rerun picks up whatever is still missing.
func (s *Sweeper) Sweep(ctx context.Context, userID string) (*Stats, error) {
	stats := &Stats{}

	contacts, err := s.contacts.ContactsNeedingGeocode(ctx, userID)
	if err != nil {
		return stats, err
	}
	if len(contacts) == 0 {
		return stats, nil
	}

	// Phase 1: cache only.
	var cached []store.CoordinateUpdate
	for triple, group := range groupByCity(contacts) {
		result, err := s.resolver.ResolveCached(ctx, triple.city, triple.state, triple.country)
		if err != nil || !result.Matched {
			continue
		}
		stats.CacheHits++
		cached = append(cached, toUpdates(group, result)...)
	}
	if len(cached) > 0 {
		n, err := s.contacts.UpdateCoordinates(ctx, cached)
		if err != nil {
			return stats, err
		}
		stats.ContactsUpdated += n
	}

	// Phase 2: provider-backed, spaced calls, per-city commits.
	stragglers, err := s.contacts.ContactsNeedingGeocode(ctx, userID)
	if err != nil {
		return stats, err
	}

	first := true
	for triple, group := range groupByCity(stragglers) {
		if !first {
			if err := sleepCtx(ctx, s.callDelay); err != nil {
				s.logDone(userID, stats, err)
				return stats, err
			}
		}
		first = false

		result, err := s.resolver.Resolve(ctx, triple.city, triple.state, triple.country)
		if err != nil || !result.Matched {
			if ctx.Err() != nil {
				s.logDone(userID, stats, ctx.Err())
				return stats, ctx.Err()
			}
			stats.Failed++
			continue
		}
		stats.APIResolved++

		n, err := s.contacts.UpdateCoordinates(ctx, toUpdates(group, result))
		if err != nil {
			if ctx.Err() != nil {
				s.logDone(userID, stats, ctx.Err())
				return stats, ctx.Err()
			}
			zap.L().Warn("sweep: coordinate update failed",
				zap.String("user_id", userID),
				zap.String("city", triple.city),
				zap.Error(err),
			)
			stats.Failed++
			continue
		}
		stats.ContactsUpdated += n
	}

	s.logDone(userID, stats, nil)
	return stats, nil
}

func (s *Sweeper) logDone(userID string, stats *Stats, err error) {
	zap.L().Info("geocoding sweep finished",
		zap.String("user_id", userID),
		zap.Int("cache_hits", stats.CacheHits),
		zap.Int("api_resolved", stats.APIResolved),
		zap.Int("failed", stats.Failed),
		zap.Int("contacts_updated", stats.ContactsUpdated),
		zap.Error(err),
	)
}

func groupByCity(contacts []model.Contact) map[cityTriple][]model.Contact {
	groups := make(map[cityTriple][]model.Contact)
	for _, c := range contacts {
		key := cityTriple{c.City, c.State, c.Country}
		groups[key] = append(groups[key], c)
	}
	return groups
}

func toUpdates(contacts []model.Contact, result *geocode.Result) []store.CoordinateUpdate {
	updates := make([]store.CoordinateUpdate, 0, len(contacts))
	for _, c := range contacts {
		updates = append(updates, store.CoordinateUpdate{
			ContactID: c.ID,
			Latitude:  result.Latitude,
			Longitude: result.Longitude,
			Timezone:  result.Timezone,
		})
	}
	return updates
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
