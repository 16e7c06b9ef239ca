package domain

import (
	"errors"
	"fmt"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRange(t *testing.T, in, out string) DateRange {
	t.Helper()
	r, err := ParseDateRange(in, out)
	require.NoError(t, err)
	return r
}

func TestDateRangeOverlaps(t *testing.T) {
	booked := mustRange(t, "2026-05-01", "2026-05-03")

	tests := []struct {
		name string
		q    DateRange
		want bool
	}{
		{"partial overlap", mustRange(t, "2026-05-02", "2026-05-04"), true},
		{"adjacent after", mustRange(t, "2026-05-03", "2026-05-05"), false},
		{"adjacent before", mustRange(t, "2026-04-29", "2026-05-01"), false},
		{"enclosing", mustRange(t, "2026-04-01", "2026-06-01"), true},
		{"enclosed", mustRange(t, "2026-05-01", "2026-05-02"), true},
		{"identical", booked, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, booked.Overlaps(tt.q))
			assert.Equal(t, tt.want, tt.q.Overlaps(booked))
		})
	}
}

func TestNewDateRangeRejectsEmptyAndInverted(t *testing.T) {
	d := civil.Date{Year: 2026, Month: 8, Day: 1}

	_, err := NewDateRange(d, d)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = NewDateRange(d, d.AddDays(-1))
	assert.ErrorIs(t, err, ErrInvalidRange)

	r, err := NewDateRange(d, d.AddDays(2))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Nights())
}

func TestParseDateRejectsGarbage(t *testing.T) {
	_, err := ParseDate("2026-13-01")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ParseDate("01/08/2026")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNightContains(t *testing.T) {
	d := civil.Date{Year: 2026, Month: 2, Day: 28}
	n := Night(d)
	assert.True(t, n.Contains(d))
	assert.False(t, n.Contains(d.AddDays(1)))
	assert.Equal(t, 1, n.Nights())
}

func TestPeakOccupancy(t *testing.T) {
	stays := []DateRange{
		mustRange(t, "2026-08-01", "2026-08-03"),
		mustRange(t, "2026-08-02", "2026-08-05"),
		mustRange(t, "2026-08-03", "2026-08-04"),
		mustRange(t, "2026-08-10", "2026-08-11"),
	}
	assert.Equal(t, 2, PeakOccupancy(stays))
	assert.Equal(t, 0, PeakOccupancy(nil))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusConfirmed))
	assert.True(t, StatusPending.CanTransitionTo(StatusCancelled))
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusCancelled))
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusCompleted))

	assert.False(t, StatusConfirmed.CanTransitionTo(StatusConfirmed))
	assert.False(t, StatusPending.CanTransitionTo(StatusCompleted))
	for _, s := range []ReservationStatus{StatusCancelled, StatusCompleted} {
		for _, next := range []ReservationStatus{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted} {
			assert.False(t, s.CanTransitionTo(next), "%s -> %s", s, next)
		}
	}
	for _, s := range []ReservationStatus{StatusPending, StatusConfirmed, StatusCancelled} {
		assert.False(t, s.CanTransitionTo(StatusPending))
	}
}

func TestKindOfAndDescribe(t *testing.T) {
	wrapped := fmt.Errorf("service.booking.Book:%w", RoomTypeNotFoundError{RoomTypeID: 7})
	kind, msg := Describe(wrapped)
	assert.Equal(t, KindNotFound, kind)
	assert.Equal(t, "room type not found: 7", msg)

	kind, msg = Describe(fmt.Errorf("op:%w", ErrNoAvailability))
	assert.Equal(t, KindNoAvailability, kind)
	assert.Equal(t, ErrNoAvailability.Error(), msg)

	kind, msg = Describe(errors.New("connection refused"))
	assert.Equal(t, KindInternal, kind)
	assert.Equal(t, "internal error", msg)
}
