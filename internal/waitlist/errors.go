package waitlist

import "errors"

var (
	// ErrConflict is returned when an optimistic-lock write or a slot
	// reservation loses a race. Callers should retry or treat it as a no-op.
	ErrConflict = errors.New("waitlist: version conflict")

	// ErrNotFound is returned for unknown ids and tokens.
	ErrNotFound = errors.New("waitlist: not found")

	// ErrOfferExpired is returned when an offer is looked up past its
	// expiry. Detection transitions the offer to expired as a side effect.
	ErrOfferExpired = errors.New("waitlist: offer expired")

	// ErrAlreadyResponded guards against double accept/decline on a token.
	ErrAlreadyResponded = errors.New("waitlist: offer already responded to")

	// ErrSendFailed reports a notification delivery failure. The offer
	// record remains the source of truth; state is never rolled back.
	ErrSendFailed = errors.New("waitlist: notification send failed")

	// ErrInvalidEntry is returned for malformed input at the boundary.
	ErrInvalidEntry = errors.New("waitlist: invalid entry")

	// ErrNoEligibleEntries is returned when no active entry matches a slot.
	ErrNoEligibleEntries = errors.New("waitlist: no eligible entries for slot")

	// ErrEntryNotActive is returned when an operation expects an active
	// entry but the entry has been removed or booked in the meantime.
	ErrEntryNotActive = errors.New("waitlist: entry no longer active")
)
