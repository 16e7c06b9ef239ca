package booking

import (
	"fmt"
	"time"

	"github.com/kirinyoku/staygo/internal/domain"
)

type CapacityExceededError struct {
	Guests   int
	Capacity int
}

func (e CapacityExceededError) Error() string {
	return fmt.Sprintf("%d guests exceed the room capacity of %d", e.Guests, e.Capacity)
}
func (e CapacityExceededError) Unwrap() error { return domain.ErrCapacityExceeded }
func (e CapacityExceededError) Detail() bool  { return true }

type NoAvailabilityError struct {
	RoomTypeID int64
	Stay       domain.DateRange
}

func (e NoAvailabilityError) Error() string {
	return fmt.Sprintf("no rooms available for %s", e.Stay)
}
func (e NoAvailabilityError) Unwrap() error { return domain.ErrNoAvailability }
func (e NoAvailabilityError) Detail() bool  { return true }

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("too many booking attempts, retry in %s", e.RetryAfter.Round(time.Second))
}
func (e RateLimitedError) Unwrap() error { return domain.ErrRateLimited }
func (e RateLimitedError) Detail() bool  { return true }
