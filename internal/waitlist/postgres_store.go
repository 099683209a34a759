package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists entries and offers in Postgres. Optimistic locking
// is enforced in SQL: updates carry WHERE version = $n and bump the version
// in the same statement, so a stale writer affects zero rows.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store backed by a pgx pool (or mock).
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

const entryColumns = `id, patient_id, patient_name, phone, email, service_id, practitioner_preference,
	tier, priority, availability_start, availability_end, waiting_since, status,
	offer_count, response_count, total_response_seconds, version, created_at, updated_at`

// CreateEntry inserts a new waitlist entry.
func (s *PostgresStore) CreateEntry(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.Version = 1

	_, err := s.db.Exec(ctx, `
		INSERT INTO waitlist_entries (id, patient_id, patient_name, phone, email, service_id, practitioner_preference,
			tier, priority, availability_start, availability_end, waiting_since, status,
			offer_count, response_count, total_response_seconds, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		e.ID, e.PatientID, e.PatientName, e.Phone, e.Email, e.ServiceID, e.PractitionerPreference,
		string(e.Tier), string(e.Priority), e.AvailabilityStart, e.AvailabilityEnd, e.WaitingSince, string(e.Status),
		e.OfferCount, e.ResponseCount, e.TotalResponseSeconds, e.Version, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("waitlist: create entry: %w", err)
	}
	return nil
}

// GetEntry loads one entry by id.
func (s *PostgresStore) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := s.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM waitlist_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("waitlist: get entry: %w", err)
	}
	return e, nil
}

// UpdateEntry writes the entry back, guarded by its version.
func (s *PostgresStore) UpdateEntry(ctx context.Context, e *Entry) error {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE waitlist_entries
		SET status = $1, offer_count = $2, response_count = $3, total_response_seconds = $4,
			practitioner_preference = $5, availability_start = $6, availability_end = $7,
			version = version + 1, updated_at = $8
		WHERE id = $9 AND version = $10`,
		string(e.Status), e.OfferCount, e.ResponseCount, e.TotalResponseSeconds,
		e.PractitionerPreference, e.AvailabilityStart, e.AvailabilityEnd,
		now, e.ID, e.Version,
	)
	if err != nil {
		return fmt.Errorf("waitlist: update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	e.Version++
	e.UpdatedAt = now
	return nil
}

// ListEligible returns active entries matching the slot's constraints.
// An availability bound stored as the zero time means the patient left that
// side of the window open; the clauses here must match Entry.Eligible.
func (s *PostgresStore) ListEligible(ctx context.Context, slot Slot) ([]*Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE status = 'active'
		  AND service_id = $1
		  AND (practitioner_preference = '' OR practitioner_preference = $2)
		  AND (availability_start = $5 OR availability_start <= $3)
		  AND (availability_end = $5 OR availability_end >= $4)
		ORDER BY waiting_since ASC`,
		slot.ServiceID, slot.PractitionerID, slot.SlotEnd, slot.SlotStart, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("waitlist: list eligible: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListEntries returns entries, optionally filtered by status.
func (s *PostgresStore) ListEntries(ctx context.Context, status *EntryStatus, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		rows pgx.Rows
		err  error
	)
	if status != nil {
		rows, err = s.db.Query(ctx, `
			SELECT `+entryColumns+` FROM waitlist_entries
			WHERE status = $1 ORDER BY waiting_since ASC LIMIT $2`, string(*status), limit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+entryColumns+` FROM waitlist_entries
			ORDER BY waiting_since ASC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("waitlist: list entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

const offerColumns = `id, entry_id, token, service_id, practitioner_id, slot_start, slot_end,
	appointment_id, status, sent_at, expires_at, responded_at, notified_at, provider_message_id, version`

// CreateOffer inserts a new offer. The token column carries a unique index,
// so a duplicate token surfaces as an insert error rather than a silent
// overwrite.
func (s *PostgresStore) CreateOffer(ctx context.Context, o *Offer) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.Version = 1
	_, err := s.db.Exec(ctx, `
		INSERT INTO waitlist_offers (id, entry_id, token, service_id, practitioner_id, slot_start, slot_end,
			appointment_id, status, sent_at, expires_at, responded_at, notified_at, provider_message_id, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, o.EntryID, o.Token, o.ServiceID, o.PractitionerID, o.SlotStart, o.SlotEnd,
		o.AppointmentID, string(o.Status), o.SentAt, o.ExpiresAt, o.RespondedAt, o.NotifiedAt, o.ProviderMessageID, o.Version,
	)
	if err != nil {
		return fmt.Errorf("waitlist: create offer: %w", err)
	}
	return nil
}

// GetOffer loads one offer by id.
func (s *PostgresStore) GetOffer(ctx context.Context, id uuid.UUID) (*Offer, error) {
	row := s.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM waitlist_offers WHERE id = $1`, id)
	o, err := scanOffer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("waitlist: get offer: %w", err)
	}
	return o, nil
}

// GetOfferByToken resolves an offer through the unique token index.
func (s *PostgresStore) GetOfferByToken(ctx context.Context, token string) (*Offer, error) {
	row := s.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM waitlist_offers WHERE token = $1`, token)
	o, err := scanOffer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("waitlist: get offer by token: %w", err)
	}
	return o, nil
}

// UpdateOffer writes the offer back, guarded by its version.
func (s *PostgresStore) UpdateOffer(ctx context.Context, o *Offer) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE waitlist_offers
		SET status = $1, appointment_id = $2, responded_at = $3, notified_at = $4,
			provider_message_id = $5, version = version + 1
		WHERE id = $6 AND version = $7`,
		string(o.Status), o.AppointmentID, o.RespondedAt, o.NotifiedAt,
		o.ProviderMessageID, o.ID, o.Version,
	)
	if err != nil {
		return fmt.Errorf("waitlist: update offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	o.Version++
	return nil
}

// PendingOfferForEntry returns the entry's pending offer.
func (s *PostgresStore) PendingOfferForEntry(ctx context.Context, entryID uuid.UUID) (*Offer, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+offerColumns+` FROM waitlist_offers
		WHERE entry_id = $1 AND status = 'pending'
		LIMIT 1`, entryID)
	o, err := scanOffer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("waitlist: pending offer for entry: %w", err)
	}
	return o, nil
}

// ListExpiredPending returns pending offers past their expiry, oldest first.
func (s *PostgresStore) ListExpiredPending(ctx context.Context, asOf time.Time) ([]*Offer, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+offerColumns+` FROM waitlist_offers
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at ASC`, asOf)
	if err != nil {
		return nil, fmt.Errorf("waitlist: list expired pending: %w", err)
	}
	defer rows.Close()

	var out []*Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("waitlist: scan offer: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e              Entry
		tier, priority string
		status         string
	)
	err := row.Scan(
		&e.ID, &e.PatientID, &e.PatientName, &e.Phone, &e.Email, &e.ServiceID, &e.PractitionerPreference,
		&tier, &priority, &e.AvailabilityStart, &e.AvailabilityEnd, &e.WaitingSince, &status,
		&e.OfferCount, &e.ResponseCount, &e.TotalResponseSeconds, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Tier = Tier(tier)
	e.Priority = Priority(priority)
	e.Status = EntryStatus(status)
	return &e, nil
}

func scanEntries(rows pgx.Rows) ([]*Entry, error) {
	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("waitlist: scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanOffer(row pgx.Row) (*Offer, error) {
	var (
		o      Offer
		status string
	)
	err := row.Scan(
		&o.ID, &o.EntryID, &o.Token, &o.ServiceID, &o.PractitionerID, &o.SlotStart, &o.SlotEnd,
		&o.AppointmentID, &status, &o.SentAt, &o.ExpiresAt, &o.RespondedAt, &o.NotifiedAt, &o.ProviderMessageID, &o.Version,
	)
	if err != nil {
		return nil, err
	}
	o.Status = OfferStatus(status)
	return &o, nil
}
