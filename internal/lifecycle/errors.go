package lifecycle

import "errors"

// Sentinel errors for lifecycle transitions. Handlers map these onto HTTP
// status codes with errors.Is; none of them ever escapes as a panic.
var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrStoreNotFound      = errors.New("store not found")

	// Authorization: the caller lacks a role on the owning store, or the
	// presented token does not match the tournament's active token. The
	// operation is skipped entirely, no partial state change.
	ErrForbidden  = errors.New("operation not allowed for the current user")
	ErrStaleToken = errors.New("missing or stale lifecycle token")

	// State conflicts: the transition is no longer legal from the
	// tournament's current state. Surfaced as a user-visible message.
	ErrNotPending       = errors.New("tournament is not pending import")
	ErrAlreadyFinalized = errors.New("tournament already finalized or discarded")
	ErrNotFinalized     = errors.New("tournament is not finalized")
	ErrNotEditing       = errors.New("tournament is not in edit mode")

	// Validation.
	ErrNoStoreTokens = errors.New("store has no scheduling tokens left this month")
	ErrSelfPairing   = errors.New("a player cannot be paired against themselves")
	ErrBadBye        = errors.New("bye outcome requires an absent opponent and vice versa")
	ErrInvalidRound  = errors.New("round number outside the tournament's declared rounds")
)
