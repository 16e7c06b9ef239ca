package availability

import (
	"context"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository/memory"
)

func date(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func setup(t *testing.T, units int) (*Service, *memory.Store, domain.RoomType) {
	t.Helper()
	store := memory.New()
	rt := domain.RoomType{Name: "Standard", Capacity: 2, TotalUnits: units, BasePricePerNight: 5000}
	require.NoError(t, store.RoomTypes().Create(context.Background(), &rt))
	return New(store, nil, Config{}), store, rt
}

func book(t *testing.T, store *memory.Store, roomID int64, ref, in, out string, status domain.ReservationStatus) {
	t.Helper()
	require.NoError(t, store.Reservations().Create(context.Background(), &domain.Reservation{
		UserID:        1,
		RoomTypeID:    roomID,
		ReferenceCode: ref,
		CheckIn:       date(t, in),
		CheckOut:      date(t, out),
		GuestCount:    1,
		Status:        status,
	}))
}

func TestCheckHalfOpenOverlap(t *testing.T) {
	svc, store, rt := setup(t, 1)
	ctx := context.Background()
	book(t, store, rt.ID, "AAAAAAAA", "2026-05-01", "2026-05-03", domain.StatusPending)

	a, err := svc.Check(ctx, rt.ID, date(t, "2026-05-02"), date(t, "2026-05-04"))
	require.NoError(t, err)
	assert.False(t, a.Available)
	assert.Equal(t, 0, a.Count)

	a, err = svc.Check(ctx, rt.ID, date(t, "2026-05-03"), date(t, "2026-05-05"))
	require.NoError(t, err)
	assert.True(t, a.Available)
	assert.Equal(t, 1, a.Count)
}

func TestCapacityIgnoresInactive(t *testing.T) {
	svc, store, rt := setup(t, 3)
	book(t, store, rt.ID, "AAAAAAAA", "2026-05-01", "2026-05-03", domain.StatusConfirmed)
	book(t, store, rt.ID, "BBBBBBBB", "2026-05-01", "2026-05-03", domain.StatusCancelled)
	book(t, store, rt.ID, "CCCCCCCC", "2026-05-01", "2026-05-03", domain.StatusCompleted)

	stay, err := domain.ParseDateRange("2026-05-01", "2026-05-02")
	require.NoError(t, err)

	n, err := svc.Capacity(context.Background(), rt.ID, stay)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCapacityNeverNegative(t *testing.T) {
	svc, store, rt := setup(t, 1)
	book(t, store, rt.ID, "AAAAAAAA", "2026-05-01", "2026-05-03", domain.StatusConfirmed)
	book(t, store, rt.ID, "BBBBBBBB", "2026-05-01", "2026-05-03", domain.StatusConfirmed)

	stay, err := domain.ParseDateRange("2026-05-01", "2026-05-03")
	require.NoError(t, err)

	n, err := svc.Capacity(context.Background(), rt.ID, stay)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCheckErrors(t *testing.T) {
	svc, _, rt := setup(t, 1)
	ctx := context.Background()

	_, err := svc.Check(ctx, 999, date(t, "2026-05-01"), date(t, "2026-05-02"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Check(ctx, rt.ID, date(t, "2026-05-02"), date(t, "2026-05-02"))
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = svc.Check(ctx, rt.ID, date(t, "2026-05-03"), date(t, "2026-05-02"))
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestCheckAll(t *testing.T) {
	svc, store, std := setup(t, 2)
	ctx := context.Background()
	dlx := domain.RoomType{Name: "Deluxe", Capacity: 4, TotalUnits: 1, BasePricePerNight: 9000}
	require.NoError(t, store.RoomTypes().Create(ctx, &dlx))
	book(t, store, dlx.ID, "AAAAAAAA", "2026-05-01", "2026-05-03", domain.StatusPending)

	all, err := svc.CheckAll(ctx, date(t, "2026-05-01"), date(t, "2026-05-02"))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, std.ID, all[0].ID)
	assert.Equal(t, 2, all[0].AvailableUnits)
	assert.Equal(t, dlx.ID, all[1].ID)
	assert.Equal(t, 0, all[1].AvailableUnits)
}
