package waitlist

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with mutex-guarded maps. It enforces the same
// version discipline as the Postgres store so service tests exercise the
// real conflict paths.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Entry
	offers  map[uuid.UUID]*Offer
	byToken map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[uuid.UUID]*Entry),
		offers:  make(map[uuid.UUID]*Offer),
		byToken: make(map[string]uuid.UUID),
	}
}

var _ Store = (*MemoryStore)(nil)

func copyEntry(e *Entry) *Entry {
	c := *e
	return &c
}

func copyOffer(o *Offer) *Offer {
	c := *o
	if o.RespondedAt != nil {
		t := *o.RespondedAt
		c.RespondedAt = &t
	}
	if o.NotifiedAt != nil {
		t := *o.NotifiedAt
		c.NotifiedAt = &t
	}
	return &c
}

// CreateEntry stores a new entry at version 1.
func (s *MemoryStore) CreateEntry(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if _, exists := s.entries[e.ID]; exists {
		return ErrConflict
	}
	e.Version = 1
	s.entries[e.ID] = copyEntry(e)
	return nil
}

// GetEntry returns a copy of the entry.
func (s *MemoryStore) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEntry(e), nil
}

// UpdateEntry applies a compare-and-swap on the entry version.
func (s *MemoryStore) UpdateEntry(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entries[e.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != e.Version {
		return ErrConflict
	}
	e.Version++
	s.entries[e.ID] = copyEntry(e)
	return nil
}

// ListEligible returns active entries matching the slot.
func (s *MemoryStore) ListEligible(ctx context.Context, slot Slot) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range s.entries {
		if e.Eligible(slot) {
			out = append(out, copyEntry(e))
		}
	}
	return out, nil
}

// ListEntries returns entries, optionally filtered by status.
func (s *MemoryStore) ListEntries(ctx context.Context, status *EntryStatus, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	var out []*Entry
	for _, e := range s.entries {
		if status != nil && e.Status != *status {
			continue
		}
		out = append(out, copyEntry(e))
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// CreateOffer stores a new offer at version 1 and indexes its token.
func (s *MemoryStore) CreateOffer(ctx context.Context, o *Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if _, exists := s.offers[o.ID]; exists {
		return ErrConflict
	}
	if _, exists := s.byToken[o.Token]; exists {
		return ErrConflict
	}
	o.Version = 1
	s.offers[o.ID] = copyOffer(o)
	s.byToken[o.Token] = o.ID
	return nil
}

// GetOffer returns a copy of the offer.
func (s *MemoryStore) GetOffer(ctx context.Context, id uuid.UUID) (*Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOffer(o), nil
}

// GetOfferByToken resolves the token index.
func (s *MemoryStore) GetOfferByToken(ctx context.Context, token string) (*Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOffer(s.offers[id]), nil
}

// UpdateOffer applies a compare-and-swap on the offer version.
func (s *MemoryStore) UpdateOffer(ctx context.Context, o *Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.offers[o.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != o.Version {
		return ErrConflict
	}
	o.Version++
	s.offers[o.ID] = copyOffer(o)
	return nil
}

// PendingOfferForEntry finds the entry's pending offer, if any.
func (s *MemoryStore) PendingOfferForEntry(ctx context.Context, entryID uuid.UUID) (*Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.offers {
		if o.EntryID == entryID && o.Status == OfferPending {
			return copyOffer(o), nil
		}
	}
	return nil, ErrNotFound
}

// ListExpiredPending returns pending offers past their expiry.
func (s *MemoryStore) ListExpiredPending(ctx context.Context, asOf time.Time) ([]*Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Offer
	for _, o := range s.offers {
		if o.Status == OfferPending && o.ExpiresAt.Before(asOf) {
			out = append(out, copyOffer(o))
		}
	}
	return out, nil
}
