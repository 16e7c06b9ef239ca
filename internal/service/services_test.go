package service

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository/memory"
	"github.com/kirinyoku/staygo/internal/service/booking"
	"github.com/kirinyoku/staygo/internal/service/broadcast"
	"github.com/kirinyoku/staygo/internal/service/catalogue"
)

func TestStandardRoomScenario(t *testing.T) {
	ctx := context.Background()
	svcs := NewServices(memory.New(), nil, broadcast.New(nil), nil, Config{})

	rt, err := svcs.Catalogue.Create(ctx, catalogue.RoomInput{
		Name:              "Standard",
		Capacity:          2,
		TotalUnits:        3,
		BasePricePerNight: 5000,
	})
	require.NoError(t, err)

	in := civil.Date{Year: 2026, Month: time.August, Day: 1}
	out := in.AddDays(2)
	req := booking.Request{UserID: 1, RoomTypeID: rt.ID, CheckIn: in, CheckOut: out, Guests: 2}

	var booked []*domain.Reservation
	for i := 0; i < 3; i++ {
		r, err := svcs.Booking.Book(ctx, req)
		require.NoError(t, err, "booking %d", i+1)
		assert.Equal(t, domain.StatusPending, r.Status)
		booked = append(booked, r)
	}
	assert.EqualValues(t, 10000, booked[0].TotalAmount)

	_, err = svcs.Booking.Book(ctx, req)
	require.ErrorIs(t, err, domain.ErrNoAvailability)

	a, err := svcs.Availability.Check(ctx, rt.ID, in, out)
	require.NoError(t, err)
	assert.False(t, a.Available)
	assert.Zero(t, a.Count)

	_, err = svcs.Lifecycle.Cancel(ctx, booked[1].ID, 1, domain.RoleUser)
	require.NoError(t, err)

	a, err = svcs.Availability.Check(ctx, rt.ID, in, out)
	require.NoError(t, err)
	assert.True(t, a.Available)
	assert.Equal(t, 1, a.Count)

	r, err := svcs.Booking.Book(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, booked[1].ReferenceCode, r.ReferenceCode)

	mine, err := svcs.Query.ListForUser(ctx, 1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 4)
	assert.Equal(t, r.ID, mine[0].ID)
}
