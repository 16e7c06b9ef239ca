package catalogue

import (
	"fmt"

	"github.com/kirinyoku/staygo/internal/domain"
)

type NameTakenError struct {
	Name string
}

func (e NameTakenError) Error() string {
	return fmt.Sprintf("room type %q already exists", e.Name)
}
func (e NameTakenError) Unwrap() error { return domain.ErrConflict }
func (e NameTakenError) Detail() bool  { return true }

// UnitsBelowBookedError rejects shrinking inventory under what active
// bookings already occupy on some future night.
type UnitsBelowBookedError struct {
	RoomTypeID int64
	Requested  int
	Booked     int
}

func (e UnitsBelowBookedError) Error() string {
	return fmt.Sprintf("cannot reduce total_units to %d: %d units are booked on some night", e.Requested, e.Booked)
}
func (e UnitsBelowBookedError) Unwrap() error { return domain.ErrConflict }
func (e UnitsBelowBookedError) Detail() bool  { return true }
