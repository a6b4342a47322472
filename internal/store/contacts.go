package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/introhq/introhq/internal/db"
	"github.com/introhq/introhq/internal/model"
)

// contactColumns is the column order used by the bulk write paths.
var contactColumns = []string{
	"id", "user_id", "first_name", "last_name", "email",
	"position", "company_name", "title", "role",
	"phone", "work_phone", "home_phone", "website_url",
	"address", "additional_addresses", "city", "state", "country",
	"latitude", "longitude", "timezone",
	"birthday", "notes", "tags", "industries", "socials",
	"search_index", "on_platform", "has_sync", "needs_sync",
	"created_at", "updated_at",
}

// contactUpdateColumns are the mutable fields refreshed on upsert.
// Identity (id, user_id, email), sync flags, and created_at stay as-is.
var contactUpdateColumns = []string{
	"first_name", "last_name",
	"position", "company_name", "title", "role",
	"phone", "work_phone", "home_phone", "website_url",
	"address", "additional_addresses", "city", "state", "country",
	"latitude", "longitude", "timezone",
	"birthday", "notes", "tags", "industries", "socials",
	"search_index", "updated_at",
}

// contactRow flattens a contact into the contactColumns order.
func contactRow(c model.Contact, now time.Time) ([]any, error) {
	tags, err := json.Marshal(orEmptySlice(c.Tags))
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal tags")
	}
	industries, err := json.Marshal(orEmptySlice(c.Industries))
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal industries")
	}
	socials, err := json.Marshal(orEmptyMap(c.Socials))
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal socials")
	}

	return []any{
		c.ID, c.UserID, c.FirstName, c.LastName, nilIfEmpty(c.Email),
		nilIfEmpty(c.Position), nilIfEmpty(c.CompanyName), nilIfEmpty(c.Title), nilIfEmpty(c.Role),
		nilIfEmpty(c.Phone), nilIfEmpty(c.WorkPhone), nilIfEmpty(c.HomePhone), nilIfEmpty(c.WebsiteURL),
		nilIfEmpty(c.Address), nilIfEmpty(c.AdditionalAddresses), nilIfEmpty(c.City), nilIfEmpty(c.State), nilIfEmpty(c.Country),
		c.Latitude, c.Longitude, nilIfEmpty(c.Timezone),
		nilIfEmpty(c.Birthday), nilIfEmpty(c.Notes), tags, industries, socials,
		c.SearchIndex, c.OnPlatform, c.HasSync, c.NeedsSync,
		now, now,
	}, nil
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// ExistingEmails implements ContactStore with a single batched query.
func (s *PostgresStore) ExistingEmails(ctx context.Context, userID string, emails []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(emails))
	if len(emails) == 0 {
		return existing, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT email FROM contacts WHERE user_id = $1 AND email = ANY($2)`,
		userID, emails,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: existing emails")
	}
	defer rows.Close()

	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, eris.Wrap(err, "store: scan existing email")
		}
		existing[email] = true
	}
	return existing, rows.Err()
}

// BulkInsertContacts implements ContactStore. All chunks share one
// transaction so a mid-run failure leaves nothing behind.
func (s *PostgresStore) BulkInsertContacts(ctx context.Context, contacts []model.Contact, chunkSize int) (int64, error) {
	if len(contacts) == 0 {
		return 0, nil
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}

	now := time.Now().UTC()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "store: bulk insert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var total int64
	for start := 0; start < len(contacts); start += chunkSize {
		end := min(start+chunkSize, len(contacts))

		chunk := make([][]any, 0, end-start)
		for _, c := range contacts[start:end] {
			row, err := contactRow(c, now)
			if err != nil {
				return 0, err
			}
			chunk = append(chunk, row)
		}

		n, err := db.CopyFromTx(ctx, tx, "contacts", contactColumns, chunk)
		if err != nil {
			return 0, eris.Wrap(model.ErrStore, err.Error())
		}
		total += n
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "store: bulk insert: commit")
	}
	return total, nil
}

// BulkUpsertContacts implements ContactStore via the shared temp-table
// upsert against the partial (user_id, email) unique index.
func (s *PostgresStore) BulkUpsertContacts(ctx context.Context, contacts []model.Contact) (int64, error) {
	if len(contacts) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(contacts))
	for _, c := range contacts {
		row, err := contactRow(c, now)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:         "contacts",
		Columns:       contactColumns,
		ConflictKeys:  []string{"user_id", "email"},
		ConflictWhere: "email IS NOT NULL",
		UpdateCols:    contactUpdateColumns,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(model.ErrStore, err.Error())
	}
	return n, nil
}

// needsGeocodePredicate selects contacts with a city but unusable
// coordinates. 0 is the legacy "not geocoded" sentinel.
const needsGeocodePredicate = `city IS NOT NULL AND city != ''
		AND (latitude IS NULL OR longitude IS NULL OR latitude = 0 OR longitude = 0)`

// ContactsNeedingGeocode implements ContactStore.
func (s *PostgresStore) ContactsNeedingGeocode(ctx context.Context, userID string) ([]model.Contact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, city, COALESCE(state, ''), COALESCE(country, ''), latitude, longitude, COALESCE(timezone, '')
		FROM contacts
		WHERE user_id = $1 AND `+needsGeocodePredicate,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: contacts needing geocode")
	}
	defer rows.Close()

	var out []model.Contact
	for rows.Next() {
		var c model.Contact
		c.UserID = userID
		if err := rows.Scan(&c.ID, &c.City, &c.State, &c.Country, &c.Latitude, &c.Longitude, &c.Timezone); err != nil {
			return nil, eris.Wrap(err, "store: scan contact needing geocode")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountContactsNeedingGeocode implements ContactStore.
func (s *PostgresStore) CountContactsNeedingGeocode(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM contacts WHERE user_id = $1 AND `+needsGeocodePredicate,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, eris.Wrap(err, "store: count contacts needing geocode")
	}
	return count, nil
}

// UpdateCoordinates implements ContactStore. Updates run in one
// transaction; an empty timezone keeps the contact's current value.
func (s *PostgresStore) UpdateCoordinates(ctx context.Context, updates []CoordinateUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "store: update coordinates: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	updated := 0
	for _, u := range updates {
		tag, err := tx.Exec(ctx,
			`UPDATE contacts
			SET latitude = $1, longitude = $2,
				timezone = COALESCE(NULLIF($3, ''), timezone),
				updated_at = now()
			WHERE id = $4`,
			u.Latitude, u.Longitude, u.Timezone, u.ContactID,
		)
		if err != nil {
			return 0, eris.Wrap(err, "store: update coordinates")
		}
		updated += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "store: update coordinates: commit")
	}
	return updated, nil
}

// EnsureContact implements ContactStore. The partial unique index makes
// the insert a no-op when the (owner, email) pair already exists.
func (s *PostgresStore) EnsureContact(ctx context.Context, userID, email, firstName, lastName string) (bool, error) {
	if email == "" {
		// No natural key to dedupe on; skip rather than risk duplicates.
		zap.L().Debug("store: ensure contact skipped, no email", zap.String("user_id", userID))
		return false, nil
	}

	c := model.Contact{
		ID:        uuid.NewString(),
		UserID:    userID,
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
	}
	c.Normalize()

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO contacts (id, user_id, first_name, last_name, email, search_index, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (user_id, email) WHERE email IS NOT NULL DO NOTHING`,
		c.ID, c.UserID, c.FirstName, c.LastName, c.Email, c.SearchIndex,
	)
	if err != nil {
		return false, eris.Wrap(err, "store: ensure contact")
	}
	return tag.RowsAffected() > 0, nil
}

// GeocodeProgress implements ContactStore.
func (s *PostgresStore) GeocodeProgress(ctx context.Context, userID string) (*GeocodeProgress, error) {
	var p GeocodeProgress
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE latitude IS NOT NULL AND longitude IS NOT NULL
				AND latitude != 0 AND longitude != 0)
		FROM contacts WHERE user_id = $1`,
		userID,
	).Scan(&p.TotalContacts, &p.WithCoordinates)
	if err != nil {
		return nil, eris.Wrap(err, "store: geocode progress")
	}
	return &p, nil
}
