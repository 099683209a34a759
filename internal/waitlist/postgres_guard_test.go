package waitlist

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockGuard(t *testing.T) (*PostgresGuard, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresGuard(mock), mock
}

func expectEnsure(mock pgxmock.PgxPoolIface, slot Slot) {
	mock.ExpectExec("INSERT INTO slot_reservations").
		WithArgs(slot.Key(), slot.ResourceVersion).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
}

func TestPostgresGuardTryReserve(t *testing.T) {
	g, mock := newMockGuard(t)
	slot := testSlot(0)

	expectEnsure(mock, slot)
	mock.ExpectQuery("UPDATE slot_reservations").
		WithArgs(slot.Key(), int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(1)))

	v, err := g.TryReserve(context.Background(), slot, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGuardTryReserveConflict(t *testing.T) {
	g, mock := newMockGuard(t)
	slot := testSlot(0)

	expectEnsure(mock, slot)
	mock.ExpectQuery("UPDATE slot_reservations").
		WithArgs(slot.Key(), int64(4)).
		WillReturnError(pgx.ErrNoRows)

	_, err := g.TryReserve(context.Background(), slot, 4)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGuardRelease(t *testing.T) {
	g, mock := newMockGuard(t)
	slot := testSlot(0)

	mock.ExpectQuery("UPDATE slot_reservations").
		WithArgs(slot.Key()).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(2)))

	v, err := g.Release(context.Background(), slot)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGuardReleaseWithoutHold(t *testing.T) {
	g, mock := newMockGuard(t)
	slot := testSlot(0)

	mock.ExpectQuery("UPDATE slot_reservations").
		WithArgs(slot.Key()).
		WillReturnError(pgx.ErrNoRows)

	_, err := g.Release(context.Background(), slot)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGuardConfirm(t *testing.T) {
	g, mock := newMockGuard(t)
	slot := testSlot(0)

	mock.ExpectExec("UPDATE slot_reservations").
		WithArgs(slot.Key()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, g.Confirm(context.Background(), slot))

	mock.ExpectExec("UPDATE slot_reservations").
		WithArgs(slot.Key()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, g.Confirm(context.Background(), slot), ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGuardCurrentVersion(t *testing.T) {
	g, mock := newMockGuard(t)
	slot := testSlot(5)

	expectEnsure(mock, slot)
	mock.ExpectQuery("SELECT version FROM slot_reservations").
		WithArgs(slot.Key()).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(5)))

	v, err := g.CurrentVersion(context.Background(), slot)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}
