package waitlist

import (
	"context"
	"sync"
)

// Guard is the sole shared-mutation point for slot ownership. Every slot
// state change goes through its compare-and-swap; no other component may
// touch slot/version state.
type Guard interface {
	// TryReserve atomically claims the slot if expectedVersion matches the
	// stored resource version and the slot is open. Returns the new version
	// on success, ErrConflict when another offer cycle holds or changed the
	// slot.
	TryReserve(ctx context.Context, slot Slot, expectedVersion int64) (int64, error)
	// Release returns a held slot to open and bumps the version.
	Release(ctx context.Context, slot Slot) (int64, error)
	// Confirm converts a hold into a permanent booking. The reservation is
	// never released afterwards.
	Confirm(ctx context.Context, slot Slot) error
	// CurrentVersion reports the stored resource version, registering the
	// slot at its caller-supplied version on first sight.
	CurrentVersion(ctx context.Context, slot Slot) (int64, error)
}

type slotState string

const (
	slotOpen   slotState = "open"
	slotHeld   slotState = "held"
	slotBooked slotState = "booked"
)

type memorySlot struct {
	state   slotState
	version int64
}

// MemoryGuard is a process-local Guard: a mutex plus explicit version
// checks, the same CAS discipline the Postgres guard gets from conditional
// updates. Used in tests and single-process deployments.
type MemoryGuard struct {
	mu    sync.Mutex
	slots map[string]*memorySlot
}

// NewMemoryGuard creates an empty in-memory guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{slots: make(map[string]*memorySlot)}
}

var _ Guard = (*MemoryGuard)(nil)

func (g *MemoryGuard) get(slot Slot) *memorySlot {
	s, ok := g.slots[slot.Key()]
	if !ok {
		s = &memorySlot{state: slotOpen, version: slot.ResourceVersion}
		g.slots[slot.Key()] = s
	}
	return s
}

// TryReserve implements the Guard CAS.
func (g *MemoryGuard) TryReserve(ctx context.Context, slot Slot, expectedVersion int64) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.get(slot)
	if s.state != slotOpen || s.version != expectedVersion {
		return 0, ErrConflict
	}
	s.state = slotHeld
	s.version++
	return s.version, nil
}

// Release reopens a held slot.
func (g *MemoryGuard) Release(ctx context.Context, slot Slot) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.slots[slot.Key()]
	if !ok || s.state != slotHeld {
		return 0, ErrConflict
	}
	s.state = slotOpen
	s.version++
	return s.version, nil
}

// Confirm turns a hold into a booking.
func (g *MemoryGuard) Confirm(ctx context.Context, slot Slot) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.slots[slot.Key()]
	if !ok || s.state != slotHeld {
		return ErrConflict
	}
	s.state = slotBooked
	s.version++
	return nil
}

// CurrentVersion reports (and lazily registers) the slot's version.
func (g *MemoryGuard) CurrentVersion(ctx context.Context, slot Slot) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.get(slot).version, nil
}
