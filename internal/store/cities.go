package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/introhq/introhq/internal/model"
)

// FindCity implements CityStore. Name matches case-insensitively; when
// state/country are supplied they match case-insensitively OR an unknown
// (empty) stored value, so a cached entry without state still answers a
// query that supplies one.
func (s *PostgresStore) FindCity(ctx context.Context, name, state, country string) (*model.City, error) {
	query := `SELECT name, state, country, latitude, longitude, COALESCE(timezone, '')
		FROM cities WHERE LOWER(name) = LOWER($1)`
	args := []any{strings.TrimSpace(name)}

	// A query that omits state/country matches any stored value; a query
	// that supplies one also matches entries whose value is unknown.
	if strings.TrimSpace(state) != "" {
		args = append(args, strings.TrimSpace(state))
		query += fmt.Sprintf(` AND (LOWER(state) = LOWER($%d) OR state = '')`, len(args))
	}
	if strings.TrimSpace(country) != "" {
		args = append(args, strings.TrimSpace(country))
		query += fmt.Sprintf(` AND (LOWER(country) = LOWER($%d) OR country = '')`, len(args))
	}
	query += ` LIMIT 1`

	var c model.City
	err := s.pool.QueryRow(ctx, query, args...).
		Scan(&c.Name, &c.State, &c.Country, &c.Latitude, &c.Longitude, &c.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: find city")
	}
	return &c, nil
}

// UpsertCity implements CityStore, keyed by (name, state, country).
// Unknown state/country are stored as '' so the natural key stays unique.
func (s *PostgresStore) UpsertCity(ctx context.Context, city model.City) error {
	name := strings.TrimSpace(city.Name)
	if name == "" {
		return eris.Wrap(model.ErrValidation, "store: upsert city: empty name")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO cities (name, state, country, latitude, longitude, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (name, state, country) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			timezone = COALESCE(EXCLUDED.timezone, cities.timezone),
			updated_at = now()`,
		name, strings.TrimSpace(city.State), strings.TrimSpace(city.Country),
		city.Latitude, city.Longitude, nilIfEmpty(city.Timezone),
	)
	if err != nil {
		return eris.Wrap(err, "store: upsert city")
	}
	return nil
}
