package model

import "time"

// PartyStatus is the status an introduced party holds within an
// introduction. Exactly three values are accepted on the wire.
type PartyStatus string

const (
	PartyPending   PartyStatus = "pending"
	PartyConnected PartyStatus = "connected"
	PartyDecline   PartyStatus = "decline"
)

// Valid reports whether s is one of the accepted party statuses.
func (s PartyStatus) Valid() bool {
	switch s {
	case PartyPending, PartyConnected, PartyDecline:
		return true
	}
	return false
}

// Terminal reports whether s ends that party's flow. Transitions away
// from a terminal status are rejected.
func (s PartyStatus) Terminal() bool {
	return s == PartyConnected || s == PartyDecline
}

// OverallStatus is derived from the pair of party statuses.
type OverallStatus string

const (
	OverallPending   OverallStatus = "pending"
	OverallPartial   OverallStatus = "partial"
	OverallConnected OverallStatus = "connected"
	OverallDecline   OverallStatus = "decline"
	OverallError     OverallStatus = "error"
)

// RequestStatus gates introductions that originate inside a group. It is
// independent of the party statuses and the overall status.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Valid reports whether s is one of the accepted request statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected:
		return true
	}
	return false
}

// Party is one side of an introduction. ID may be empty when the party
// is not a platform user.
type Party struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// Introduction records a connector (From) introducing party A
// (Introduced) to party B (IntroducedTo). Each introduced party carries
// its own sub-state; the overall status is derived from the pair. Rows
// are never hard-deleted.
type Introduction struct {
	ID string

	From         Party
	Introduced   Party
	IntroducedTo Party

	IntroducedStatus    PartyStatus
	IntroducedIsAttempt bool
	IntroducedMessage   string

	IntroducedToStatus    PartyStatus
	IntroducedToIsAttempt bool
	IntroducedToMessage   string

	OverallStatus   OverallStatus
	RequestStatus   RequestStatus // empty unless group-gated
	Message         string
	ReminderMessage string
	Revoked         bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
