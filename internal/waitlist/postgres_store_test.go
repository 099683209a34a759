package waitlist

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

func entryRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "patient_id", "patient_name", "phone", "email", "service_id", "practitioner_preference",
		"tier", "priority", "availability_start", "availability_end", "waiting_since", "status",
		"offer_count", "response_count", "total_response_seconds", "version", "created_at", "updated_at",
	})
}

func offerRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "entry_id", "token", "service_id", "practitioner_id", "slot_start", "slot_end",
		"appointment_id", "status", "sent_at", "expires_at", "responded_at", "notified_at", "provider_message_id", "version",
	})
}

func TestPostgresCreateEntry(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO waitlist_entries").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "Dana Smith", "+15550001111", "", "botox", "",
			"gold", "medium", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "active",
			0, 0, float64(0), int64(1), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	e := &Entry{
		PatientID:   uuid.New(),
		PatientName: "Dana Smith",
		Phone:       "+15550001111",
		ServiceID:   "botox",
		Tier:        TierGold,
		Priority:    PriorityMedium,
		Status:      EntryActive,
	}
	require.NoError(t, store.CreateEntry(context.Background(), e))

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, int64(1), e.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetEntryNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM waitlist_entries WHERE id").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetEntry(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetEntryScans(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM waitlist_entries WHERE id").
		WithArgs(id).
		WillReturnRows(entryRows().AddRow(
			id, uuid.New(), "Dana Smith", "+15550001111", "", "botox", "",
			"platinum", "high", now, now.Add(48*time.Hour), now.Add(-72*time.Hour), "active",
			2, 1, 300.0, int64(3), now, now,
		))

	e, err := store.GetEntry(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, TierPlatinum, e.Tier)
	assert.Equal(t, PriorityHigh, e.Priority)
	assert.Equal(t, EntryActive, e.Status)
	assert.Equal(t, 2, e.OfferCount)
	assert.Equal(t, int64(3), e.Version)
	assert.InDelta(t, 300.0, e.AvgResponseSeconds(), 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateEntryConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE waitlist_entries").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	e := &Entry{ID: uuid.New(), Status: EntryOffered, Version: 2}
	assert.ErrorIs(t, store.UpdateEntry(context.Background(), e), ErrConflict)
	assert.Equal(t, int64(2), e.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateEntryBumpsVersion(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE waitlist_entries").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	e := &Entry{ID: uuid.New(), Status: EntryOffered, Version: 2}
	require.NoError(t, store.UpdateEntry(context.Background(), e))
	assert.Equal(t, int64(3), e.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListEligible(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	slot := testSlot(0)

	mock.ExpectQuery("SELECT (.+) FROM waitlist_entries").
		WithArgs(slot.ServiceID, slot.PractitionerID, slot.SlotEnd, slot.SlotStart, time.Time{}).
		WillReturnRows(entryRows().AddRow(
			uuid.New(), uuid.New(), "Dana Smith", "+15550001111", "", "botox", "",
			"gold", "medium", now.Add(-time.Hour), now.Add(48*time.Hour), now.Add(-72*time.Hour), "active",
			0, 0, 0.0, int64(1), now, now,
		))

	entries, err := store.ListEligible(context.Background(), slot)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Dana Smith", entries[0].PatientName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// An entry joined without an availability window stores both bounds as the
// zero time; the eligibility query must treat that as unconstrained rather
// than as a window that ended before any real slot.
func TestPostgresListEligibleOpenWindow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	slot := testSlot(0)

	mock.ExpectQuery(`(?s)availability_start = \$5 OR availability_start <= \$3.*availability_end = \$5 OR availability_end >= \$4`).
		WithArgs(slot.ServiceID, slot.PractitionerID, slot.SlotEnd, slot.SlotStart, time.Time{}).
		WillReturnRows(entryRows().AddRow(
			uuid.New(), uuid.New(), "Dana Smith", "+15550001111", "", "botox", "",
			"gold", "medium", time.Time{}, time.Time{}, now.Add(-72*time.Hour), "active",
			0, 0, 0.0, int64(1), now, now,
		))

	entries, err := store.ListEligible(context.Background(), slot)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].AvailabilityEnd.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetOfferByToken(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	offerID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM waitlist_offers WHERE token").
		WithArgs("tok-1").
		WillReturnRows(offerRows().AddRow(
			offerID, uuid.New(), "tok-1", "botox", "dr-lee", now.Add(24*time.Hour), now.Add(25*time.Hour),
			"", "pending", now, now.Add(30*time.Minute), nil, nil, "", int64(1),
		))

	o, err := store.GetOfferByToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, offerID, o.ID)
	assert.Equal(t, OfferPending, o.Status)
	assert.Nil(t, o.RespondedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateOfferConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE waitlist_offers").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	o := &Offer{ID: uuid.New(), Status: OfferAccepted, Version: 1}
	assert.ErrorIs(t, store.UpdateOffer(context.Background(), o), ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListExpiredPending(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM waitlist_offers").
		WithArgs(now).
		WillReturnRows(offerRows().
			AddRow(uuid.New(), uuid.New(), "tok-1", "botox", "", now.Add(-time.Hour), now.Add(-30*time.Minute),
				"", "pending", now.Add(-2*time.Hour), now.Add(-time.Minute), nil, nil, "", int64(1)).
			AddRow(uuid.New(), uuid.New(), "tok-2", "facial", "", now.Add(-time.Hour), now.Add(-30*time.Minute),
				"", "pending", now.Add(-2*time.Hour), now.Add(-2*time.Minute), nil, nil, "", int64(1)))

	offers, err := store.ListExpiredPending(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, offers, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
