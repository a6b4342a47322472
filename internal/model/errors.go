package model

import "github.com/rotisserie/eris"

// Sentinel errors shared across services. Wrap with eris and check with
// errors.Is so callers can map them to transport-level responses.
var (
	// ErrValidation marks malformed or missing required input.
	ErrValidation = eris.New("validation failed")

	// ErrDuplicate marks an email collision within the same owner.
	ErrDuplicate = eris.New("duplicate record")

	// ErrNotFound marks an absent record, or a caller who is not a party
	// to the record they are acting on.
	ErrNotFound = eris.New("not found")

	// ErrIllegalState marks an operation rejected by the current state,
	// e.g. revoking an already-revoked introduction.
	ErrIllegalState = eris.New("illegal state")

	// ErrExternalService marks an unreachable or failing external
	// collaborator. Geocoding callers degrade to unset coordinates
	// instead of propagating this.
	ErrExternalService = eris.New("external service failure")

	// ErrStore marks a persistence failure.
	ErrStore = eris.New("store failure")
)
