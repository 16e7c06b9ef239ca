package domain

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRange      = errors.New("check-out must be after check-in")
	ErrCapacityExceeded  = errors.New("guest count exceeds room capacity")
	ErrNoAvailability    = errors.New("no rooms available for the selected dates")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInternal          = errors.New("internal error")

	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
)

// Kind is the closed set of failure categories surfaced by the services.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidRange
	KindCapacityExceeded
	KindNoAvailability
	KindForbidden
	KindInvalidTransition
	KindInvalidArgument
	KindConflict
	KindRateLimited
)

var kindNames = map[Kind]string{
	KindInternal:          "internal",
	KindNotFound:          "not_found",
	KindInvalidRange:      "invalid_range",
	KindCapacityExceeded:  "capacity_exceeded",
	KindNoAvailability:    "no_availability",
	KindForbidden:         "forbidden",
	KindInvalidTransition: "invalid_transition",
	KindInvalidArgument:   "invalid_argument",
	KindConflict:          "conflict",
	KindRateLimited:       "rate_limited",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var kindSentinels = []struct {
	kind Kind
	err  error
}{
	{KindNotFound, ErrNotFound},
	{KindInvalidRange, ErrInvalidRange},
	{KindCapacityExceeded, ErrCapacityExceeded},
	{KindNoAvailability, ErrNoAvailability},
	{KindForbidden, ErrForbidden},
	{KindInvalidTransition, ErrInvalidTransition},
	{KindInvalidArgument, ErrInvalidArgument},
	{KindConflict, ErrConflict},
	{KindRateLimited, ErrRateLimited},
	{KindInternal, ErrInternal},
}

// KindOf classifies an error chain. Anything unrecognised is internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.err) {
			return ks.kind
		}
	}
	return KindInternal
}

// Describe returns the kind and a caller-safe message for err. The message is
// taken from the innermost typed domain error when there is one, so operation
// prefixes added while wrapping never leak to callers.
func Describe(err error) (Kind, string) {
	kind := KindOf(err)
	if kind == KindInternal {
		return kind, ErrInternal.Error()
	}

	var de detailedError
	if errors.As(err, &de) {
		return kind, de.Error()
	}

	for _, ks := range kindSentinels {
		if ks.kind == kind {
			return kind, ks.err.Error()
		}
	}
	return kind, ErrInternal.Error()
}

// detailedError is implemented by the typed errors below and in the services.
type detailedError interface {
	error
	Detail() bool
}

type RoomTypeNotFoundError struct {
	RoomTypeID int64
}

func (e RoomTypeNotFoundError) Error() string {
	return fmt.Sprintf("room type not found: %d", e.RoomTypeID)
}
func (e RoomTypeNotFoundError) Unwrap() error { return ErrNotFound }
func (e RoomTypeNotFoundError) Detail() bool  { return true }

type ReservationNotFoundError struct {
	ReservationID int64
	Reference     string
}

func (e ReservationNotFoundError) Error() string {
	if e.Reference != "" {
		return fmt.Sprintf("reservation not found: %s", e.Reference)
	}
	return fmt.Sprintf("reservation not found: %d", e.ReservationID)
}
func (e ReservationNotFoundError) Unwrap() error { return ErrNotFound }
func (e ReservationNotFoundError) Detail() bool  { return true }

type InvalidRangeError struct {
	CheckIn  civil.Date
	CheckOut civil.Date
}

func (e InvalidRangeError) Error() string {
	return fmt.Sprintf("check-out %s must be after check-in %s", e.CheckOut, e.CheckIn)
}
func (e InvalidRangeError) Unwrap() error { return ErrInvalidRange }
func (e InvalidRangeError) Detail() bool  { return true }

type ForbiddenError struct {
	ReservationID int64
	UserID        int64
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("user %d may not act on reservation %d", e.UserID, e.ReservationID)
}
func (e ForbiddenError) Unwrap() error { return ErrForbidden }
func (e ForbiddenError) Detail() bool  { return true }

// InvalidArgumentError reports a rejected input field.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
func (e InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }
func (e InvalidArgumentError) Detail() bool  { return true }
