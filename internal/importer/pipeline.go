package importer

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/introhq/introhq/internal/model"
	"github.com/introhq/introhq/pkg/geocode"
)

// ConflictPolicy governs what happens to a row whose email collides with
// an existing contact of the same owner.
type ConflictPolicy string

const (
	// PolicySkip drops colliding rows with a "Duplicate email" reason.
	PolicySkip ConflictPolicy = "skip"

	// PolicyUpdate routes colliding rows to an upsert that refreshes the
	// existing contact's mutable fields.
	PolicyUpdate ConflictPolicy = "update"
)

// ParseConflictPolicy validates a policy string, defaulting to skip.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicySkip):
		return PolicySkip, nil
	case string(PolicyUpdate):
		return PolicyUpdate, nil
	}
	return "", eris.Wrapf(model.ErrValidation, "importer: unknown conflict policy %q", s)
}

// ContactWriter is the store surface the pipeline writes through.
type ContactWriter interface {
	ExistingEmails(ctx context.Context, userID string, emails []string) (map[string]bool, error)
	BulkInsertContacts(ctx context.Context, contacts []model.Contact, chunkSize int) (int64, error)
	BulkUpsertContacts(ctx context.Context, contacts []model.Contact) (int64, error)
	CountContactsNeedingGeocode(ctx context.Context, userID string) (int, error)
}

// Resolver resolves a city triple to coordinates.
type Resolver interface {
	Resolve(ctx context.Context, city, state, country string) (*geocode.Result, error)
}

// SweepEnqueuer schedules an asynchronous geocoding pass for a user.
type SweepEnqueuer interface {
	EnqueueSweep(userID string) error
}

// SkippedRow reports why a CSV row was not imported.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
	Email  string `json:"email,omitempty"`
}

// Summary is the result of one import run. Bulk imports always succeed
// at the HTTP level; per-row failures are listed here instead.
type Summary struct {
	TotalRows     int          `json:"totalRows"`
	Created       int          `json:"created"`
	Updated       int          `json:"updated"`
	Skipped       int          `json:"skipped"`
	SkippedRows   []SkippedRow `json:"skippedContacts"`
	SweepEnqueued bool         `json:"geocodingJobDispatched"`
}

// Pipeline is the bulk CSV import pipeline.
type Pipeline struct {
	contacts  ContactWriter
	resolver  Resolver
	sweeps    SweepEnqueuer
	chunkSize int
}

// New creates a Pipeline. sweeps may be nil when no job runner is wired
// (e.g. the one-shot CLI import).
func New(contacts ContactWriter, resolver Resolver, sweeps SweepEnqueuer, chunkSize int) *Pipeline {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	return &Pipeline{contacts: contacts, resolver: resolver, sweeps: sweeps, chunkSize: chunkSize}
}

// Run imports the CSV stream for the given user. Rows are processed in
// file order for skip reporting; writes are batched. Duplicate handling
// follows the conflict policy. Geocoding cost is amortized per unique
// (city, state, country) triple, and rows the resolver cannot answer are
// left for the asynchronous sweep.
func (p *Pipeline) Run(ctx context.Context, userID string, r io.Reader, policy ConflictPolicy) (*Summary, error) {
	rows, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}

	summary := &Summary{TotalRows: len(rows), SkippedRows: []SkippedRow{}}

	// Validate rows and collect emails for one batched duplicate check.
	valid := make([]Row, 0, len(rows))
	var emails []string
	for _, row := range rows {
		if strings.TrimSpace(row.FirstName) == "" || strings.TrimSpace(row.LastName) == "" {
			summary.SkippedRows = append(summary.SkippedRows, SkippedRow{
				Row: row.Index, Reason: "Missing firstName/lastName", Email: row.Email,
			})
			continue
		}
		if row.Email != "" {
			emails = append(emails, row.Email)
		}
		valid = append(valid, row)
	}

	existing, err := p.contacts.ExistingEmails(ctx, userID, emails)
	if err != nil {
		return nil, err
	}

	// inserts and updates share one backing slice so the geocode pass can
	// mutate coordinates in place across both. An email may appear in
	// either set at most once: repeats within the file would break the
	// single-transaction insert on the (user_id, email) unique index, and
	// the upsert statement cannot touch the same row twice.
	keep := make([]Row, 0, len(valid))
	var updateRows []Row
	seen := make(map[string]bool, len(valid))
	for _, row := range valid {
		if row.Email != "" {
			if seen[row.Email] {
				summary.SkippedRows = append(summary.SkippedRows, SkippedRow{
					Row: row.Index, Reason: "Duplicate email", Email: row.Email,
				})
				continue
			}
			seen[row.Email] = true

			if existing[row.Email] {
				if policy == PolicyUpdate {
					updateRows = append(updateRows, row)
				} else {
					summary.SkippedRows = append(summary.SkippedRows, SkippedRow{
						Row: row.Index, Reason: "Duplicate email", Email: row.Email,
					})
				}
				continue
			}
		}
		keep = append(keep, row)
	}
	nInserts := len(keep)
	keep = append(keep, updateRows...)
	summary.Skipped = len(summary.SkippedRows)

	p.geocodeRows(ctx, keep)
	inserts, updates := keep[:nInserts], keep[nInserts:]

	if len(inserts) > 0 {
		created, err := p.contacts.BulkInsertContacts(ctx, p.toContacts(userID, inserts), p.chunkSize)
		if err != nil {
			return nil, err
		}
		summary.Created = int(created)
	}
	if len(updates) > 0 {
		updated, err := p.contacts.BulkUpsertContacts(ctx, p.toContacts(userID, updates))
		if err != nil {
			return nil, err
		}
		summary.Updated = int(updated)
	}

	summary.SweepEnqueued = p.enqueueSweepIfNeeded(ctx, userID)

	zap.L().Info("csv import completed",
		zap.String("user_id", userID),
		zap.String("policy", string(policy)),
		zap.Int("total_rows", summary.TotalRows),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

// geocodeRows resolves each unique city triple once and fans the result
// back out to every row sharing it. Resolver misses leave coordinates
// unset; they are never an error.
func (p *Pipeline) geocodeRows(ctx context.Context, rows []Row) {
	type triple struct{ city, state, country string }

	need := make(map[triple][]int)
	for i := range rows {
		row := &rows[i]
		if strings.TrimSpace(row.City) == "" {
			continue
		}
		if geocode.HasValidCoordinates(row.Latitude, row.Longitude) {
			continue
		}
		key := triple{row.City, row.State, row.Country}
		need[key] = append(need[key], i)
	}

	for key, indices := range need {
		result, err := p.resolver.Resolve(ctx, key.city, key.state, key.country)
		if err != nil || result == nil || !result.Matched {
			continue
		}
		for _, i := range indices {
			lat, lng := result.Latitude, result.Longitude
			rows[i].Latitude = &lat
			rows[i].Longitude = &lng
			if rows[i].Timezone == "" {
				rows[i].Timezone = result.Timezone
			}
		}
	}
}

// toContacts converts parsed rows into normalized contact records with
// fresh identifiers.
func (p *Pipeline) toContacts(userID string, rows []Row) []model.Contact {
	contacts := make([]model.Contact, 0, len(rows))
	for _, row := range rows {
		c := model.Contact{
			ID:                  uuid.NewString(),
			UserID:              userID,
			FirstName:           row.FirstName,
			LastName:            row.LastName,
			Email:               row.Email,
			Position:            row.Position,
			CompanyName:         row.Company,
			Title:               row.Title,
			Role:                row.Role,
			Phone:               row.Phone,
			WorkPhone:           row.WorkPhone,
			HomePhone:           row.HomePhone,
			WebsiteURL:          row.WebsiteURL,
			Address:             row.Address,
			AdditionalAddresses: row.AdditionalAddresses,
			City:                row.City,
			State:               row.State,
			Country:             row.Country,
			Latitude:            row.Latitude,
			Longitude:           row.Longitude,
			Timezone:            row.Timezone,
			Birthday:            row.Birthday,
			Notes:               row.Notes,
			Tags:                row.Tags,
			Industries:          row.Industries,
			Socials:             row.Socials,
		}
		c.Normalize()
		contacts = append(contacts, c)
	}
	return contacts
}

// enqueueSweepIfNeeded schedules the asynchronous geocoding sweep when
// imported contacts still lack coordinates. The HTTP response never
// blocks on geocoding stragglers.
func (p *Pipeline) enqueueSweepIfNeeded(ctx context.Context, userID string) bool {
	if p.sweeps == nil {
		return false
	}

	pending, err := p.contacts.CountContactsNeedingGeocode(ctx, userID)
	if err != nil {
		zap.L().Warn("csv import: pending geocode count failed", zap.Error(err))
		return false
	}
	if pending == 0 {
		return false
	}

	if err := p.sweeps.EnqueueSweep(userID); err != nil {
		zap.L().Warn("csv import: sweep enqueue failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return false
	}
	zap.L().Info("csv import: sweep enqueued",
		zap.String("user_id", userID),
		zap.Int("contacts_pending", pending),
	)
	return true
}
