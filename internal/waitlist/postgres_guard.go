package waitlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresGuard enforces slot ownership through a slot_reservations row per
// slot key. Every transition is a conditional UPDATE whose WHERE clause
// carries the expected state (and, for reservation, the expected version);
// zero rows affected means another process won the race.
type PostgresGuard struct {
	db DB
}

// NewPostgresGuard creates a guard backed by a pgx pool (or mock).
func NewPostgresGuard(db DB) *PostgresGuard {
	return &PostgresGuard{db: db}
}

var _ Guard = (*PostgresGuard)(nil)

// ensure registers the slot at the caller-supplied version on first sight.
func (g *PostgresGuard) ensure(ctx context.Context, slot Slot) error {
	_, err := g.db.Exec(ctx, `
		INSERT INTO slot_reservations (slot_key, state, version)
		VALUES ($1, 'open', $2)
		ON CONFLICT (slot_key) DO NOTHING`,
		slot.Key(), slot.ResourceVersion)
	if err != nil {
		return fmt.Errorf("waitlist: ensure slot: %w", err)
	}
	return nil
}

// TryReserve claims the slot iff it is open at the expected version.
func (g *PostgresGuard) TryReserve(ctx context.Context, slot Slot, expectedVersion int64) (int64, error) {
	if err := g.ensure(ctx, slot); err != nil {
		return 0, err
	}
	row := g.db.QueryRow(ctx, `
		UPDATE slot_reservations
		SET state = 'held', version = version + 1, updated_at = now()
		WHERE slot_key = $1 AND state = 'open' AND version = $2
		RETURNING version`,
		slot.Key(), expectedVersion)

	var newVersion int64
	if err := row.Scan(&newVersion); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("waitlist: reserve slot: %w", err)
	}
	return newVersion, nil
}

// Release reopens a held slot.
func (g *PostgresGuard) Release(ctx context.Context, slot Slot) (int64, error) {
	row := g.db.QueryRow(ctx, `
		UPDATE slot_reservations
		SET state = 'open', version = version + 1, updated_at = now()
		WHERE slot_key = $1 AND state = 'held'
		RETURNING version`,
		slot.Key())

	var newVersion int64
	if err := row.Scan(&newVersion); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("waitlist: release slot: %w", err)
	}
	return newVersion, nil
}

// Confirm converts a hold into a booking.
func (g *PostgresGuard) Confirm(ctx context.Context, slot Slot) error {
	tag, err := g.db.Exec(ctx, `
		UPDATE slot_reservations
		SET state = 'booked', version = version + 1, updated_at = now()
		WHERE slot_key = $1 AND state = 'held'`,
		slot.Key())
	if err != nil {
		return fmt.Errorf("waitlist: confirm slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// CurrentVersion reports the stored resource version.
func (g *PostgresGuard) CurrentVersion(ctx context.Context, slot Slot) (int64, error) {
	if err := g.ensure(ctx, slot); err != nil {
		return 0, err
	}
	row := g.db.QueryRow(ctx, `SELECT version FROM slot_reservations WHERE slot_key = $1`, slot.Key())
	var version int64
	if err := row.Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("waitlist: slot version: %w", err)
	}
	return version, nil
}
