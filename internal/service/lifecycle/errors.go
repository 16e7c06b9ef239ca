package lifecycle

import (
	"fmt"

	"github.com/kirinyoku/staygo/internal/domain"
)

var verbs = map[domain.ReservationStatus]string{
	domain.StatusConfirmed: "confirm",
	domain.StatusCancelled: "cancel",
	domain.StatusCompleted: "complete",
}

// TransitionError reports a status change the state machine does not allow,
// e.g. "cannot confirm a cancelled reservation".
type TransitionError struct {
	ReservationID int64
	From          domain.ReservationStatus
	To            domain.ReservationStatus
}

func (e TransitionError) Error() string {
	if e.From == e.To {
		return fmt.Sprintf("reservation is already %s", e.From)
	}
	return fmt.Sprintf("cannot %s a %s reservation", verbs[e.To], e.From)
}
func (e TransitionError) Unwrap() error { return domain.ErrInvalidTransition }
func (e TransitionError) Detail() bool  { return true }
