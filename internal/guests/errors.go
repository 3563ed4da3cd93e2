package guests

import "errors"

var (
	// ErrNotFound is returned when a guest or account does not exist within
	// the caller's scope. Cross-account hits are reported identically so id
	// probing cannot reveal records in other accounts.
	ErrNotFound = errors.New("guest not found")

	// ErrCrossAccount is the internal form of a scope violation: the id
	// resolved, but to a different account. Handlers must translate it to a
	// plain not-found before it leaves the service.
	ErrCrossAccount = errors.New("guest belongs to a different account")

	// ErrValidation covers bad categories, negative counts, malformed
	// phone numbers and party sizes over the invitation limit.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyCheckedIn means the guest is checked in and the caller did
	// not confirm the overwrite.
	ErrAlreadyCheckedIn = errors.New("guest already checked in, confirmation required")

	// ErrConcurrentModification means an atomic update precondition failed.
	// Idempotent operations are retried once internally before this
	// surfaces.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateCode means the invitation code is already taken within
	// the account.
	ErrDuplicateCode = errors.New("invitation code already in use")

	// ErrLocked means another walk-in submission for the same person is in
	// flight and holds the dedup lock.
	ErrLocked = errors.New("walk-in submission already in progress for this guest")
)
