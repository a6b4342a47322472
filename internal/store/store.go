// Package store persists contacts, the cities geocoding cache, and
// introductions in Postgres.
package store

import (
	"context"

	"github.com/introhq/introhq/internal/model"
)

// CoordinateUpdate sets a contact's coordinates (and optionally timezone)
// after a geocoding pass.
type CoordinateUpdate struct {
	ContactID string
	Latitude  float64
	Longitude float64
	Timezone  string // empty keeps the contact's current timezone
}

// GeocodeProgress summarizes how much of a user's contact book has
// coordinates.
type GeocodeProgress struct {
	TotalContacts   int
	WithCoordinates int
}

// ContactStore is the contact persistence surface.
type ContactStore interface {
	// ExistingEmails returns which of the given normalized emails already
	// exist for the user, in a single batched query.
	ExistingEmails(ctx context.Context, userID string, emails []string) (map[string]bool, error)

	// BulkInsertContacts inserts contacts in chunks inside one
	// transaction. The whole import commits or rolls back together.
	BulkInsertContacts(ctx context.Context, contacts []model.Contact, chunkSize int) (int64, error)

	// BulkUpsertContacts upserts contacts on (user_id, email), updating
	// every mutable field on conflict. Rows without an email must not be
	// passed here; they always insert.
	BulkUpsertContacts(ctx context.Context, contacts []model.Contact) (int64, error)

	// ContactsNeedingGeocode returns the user's contacts having a city
	// but no usable coordinates (null or the 0 sentinel).
	ContactsNeedingGeocode(ctx context.Context, userID string) ([]model.Contact, error)

	// CountContactsNeedingGeocode is the count-only variant.
	CountContactsNeedingGeocode(ctx context.Context, userID string) (int, error)

	// UpdateCoordinates applies geocoding results in one transaction.
	UpdateCoordinates(ctx context.Context, updates []CoordinateUpdate) (int, error)

	// EnsureContact creates a minimal contact for (userID, email) if none
	// exists. Existing contacts are left untouched. Reports whether a row
	// was created.
	EnsureContact(ctx context.Context, userID, email, firstName, lastName string) (bool, error)

	// GeocodeProgress returns coordinate coverage for the user.
	GeocodeProgress(ctx context.Context, userID string) (*GeocodeProgress, error)
}

// CityStore is the cities-cache persistence surface.
type CityStore interface {
	FindCity(ctx context.Context, name, state, country string) (*model.City, error)
	UpsertCity(ctx context.Context, city model.City) error
}

// IntroductionStore is the introduction persistence surface.
type IntroductionStore interface {
	CreateIntroduction(ctx context.Context, intro *model.Introduction) error
	GetIntroduction(ctx context.Context, id string) (*model.Introduction, error)

	// SaveIntroductionStatus persists the party sub-states and the
	// derived overall status.
	SaveIntroductionStatus(ctx context.Context, intro *model.Introduction) error

	SetRequestStatus(ctx context.Context, id string, status model.RequestStatus) error
	SetReminder(ctx context.Context, id, message string) error
	SetRevoked(ctx context.Context, id string, revoked bool) error
}

// Store is the full persistence interface.
type Store interface {
	ContactStore
	CityStore
	IntroductionStore

	Migrate(ctx context.Context) error
	Close() error
}
