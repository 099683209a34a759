package waitlist

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable home of waitlist entries and offers. Updates follow
// an optimistic-locking discipline: the caller passes back the record it
// read, the store compares the embedded version against the stored one and
// returns ErrConflict on mismatch. On success the stored version (and the
// caller's copy) is incremented.
type Store interface {
	CreateEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error)
	// UpdateEntry persists e if e.Version matches the stored version,
	// otherwise fails with ErrConflict.
	UpdateEntry(ctx context.Context, e *Entry) error
	// ListEligible returns active entries matching the slot's service,
	// practitioner preference, and availability window. Ranking is the
	// caller's job.
	ListEligible(ctx context.Context, slot Slot) ([]*Entry, error)
	ListEntries(ctx context.Context, status *EntryStatus, limit int) ([]*Entry, error)

	CreateOffer(ctx context.Context, o *Offer) error
	GetOffer(ctx context.Context, id uuid.UUID) (*Offer, error)
	// GetOfferByToken resolves the public response credential. Token lookup
	// is indexed, never a scan over all offers.
	GetOfferByToken(ctx context.Context, token string) (*Offer, error)
	UpdateOffer(ctx context.Context, o *Offer) error
	// PendingOfferForEntry returns the entry's pending offer, or ErrNotFound.
	PendingOfferForEntry(ctx context.Context, entryID uuid.UUID) (*Offer, error)
	// ListExpiredPending returns pending offers whose expiry is strictly
	// before asOf.
	ListExpiredPending(ctx context.Context, asOf time.Time) ([]*Offer, error)
}
