package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
)

// ActiveStatuses are the statuses that hold inventory.
var ActiveStatuses = []ReservationStatus{StatusPending, StatusConfirmed}

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Active reports whether a reservation in this status counts against capacity.
func (s ReservationStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether the status has no outgoing transitions.
func (s ReservationStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransitionTo encodes the reservation state machine:
//
//	pending   --confirm--> confirmed
//	pending   --cancel---> cancelled
//	confirmed --cancel---> cancelled
//	confirmed --complete-> completed
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCancelled || next == StatusCompleted
	default:
		return false
	}
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type RoomType struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Capacity          int       `json:"capacity"`
	TotalUnits        int       `json:"total_units"`
	BasePricePerNight int64     `json:"base_price_per_night"`
	Amenities         []string  `json:"amenities"`
	ImageURL          string    `json:"image_url,omitempty"`
	Rating            float64   `json:"rating"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type RoomSortField string

const (
	SortByPrice    RoomSortField = "price_per_night"
	SortByRating   RoomSortField = "rating"
	SortByCapacity RoomSortField = "capacity"
	SortByName     RoomSortField = "name"
)

type RoomSort struct {
	Field RoomSortField
	Desc  bool
}

// Normalize falls back to price ascending for unknown fields.
func (s RoomSort) Normalize() RoomSort {
	switch s.Field {
	case SortByPrice, SortByRating, SortByCapacity, SortByName:
		return s
	}
	return RoomSort{Field: SortByPrice, Desc: s.Desc}
}

type Reservation struct {
	ID            int64             `json:"id"`
	UserID        int64             `json:"user_id"`
	RoomTypeID    int64             `json:"room_type_id"`
	ReferenceCode string            `json:"reference_code"`
	CheckIn       civil.Date        `json:"check_in"`
	CheckOut      civil.Date        `json:"check_out"`
	GuestCount    int               `json:"guest_count"`
	TotalAmount   int64             `json:"total_amount"`
	Notes         string            `json:"notes,omitempty"`
	Status        ReservationStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (r Reservation) Stay() DateRange {
	return DateRange{CheckIn: r.CheckIn, CheckOut: r.CheckOut}
}

// OwnedBy reports whether the actor may act on the reservation as its owner or as an admin.
func (r Reservation) OwnedBy(userID int64, role Role) bool {
	return role == RoleAdmin || r.UserID == userID
}

type ReservationFilter struct {
	UserID int64
	Status ReservationStatus
	Limit  int
	Offset int
}

type PricingSnapshot struct {
	ID            int64      `json:"id"`
	RoomTypeID    int64      `json:"room_type_id"`
	Date          civil.Date `json:"date"`
	RecordedPrice int64      `json:"recorded_price"`
	DemandFactor  float64    `json:"demand_factor"`
	RecordedAt    time.Time  `json:"recorded_at"`
}

type PriceSource string

const (
	PriceFromSnapshot PriceSource = "snapshot"
	PriceFromDemand   PriceSource = "demand"
)

type PriceQuote struct {
	RoomTypeID   int64       `json:"room_type_id"`
	Date         civil.Date  `json:"date"`
	BasePrice    int64       `json:"base_price"`
	DemandFactor float64     `json:"demand_factor"`
	Occupancy    float64     `json:"occupancy"`
	Source       PriceSource `json:"source"`
	Amount       int64       `json:"amount"`
}

type Availability struct {
	RoomTypeID int64      `json:"room_type_id"`
	CheckIn    civil.Date `json:"check_in"`
	CheckOut   civil.Date `json:"check_out"`
	Available  bool       `json:"available"`
	Count      int        `json:"count"`
}

type RoomAvailability struct {
	RoomType
	AvailableUnits int `json:"available_units"`
}

type RoomRevenue struct {
	Name     string `json:"name"`
	Bookings int64  `json:"bookings"`
	Revenue  int64  `json:"revenue"`
}

type MonthlyRevenue struct {
	Month    string `json:"month"` // YYYY-MM
	Bookings int64  `json:"bookings"`
	Revenue  int64  `json:"revenue"`
}

type ReservationStats struct {
	Total     int64            `json:"total"`
	Pending   int64            `json:"pending"`
	Confirmed int64            `json:"confirmed"`
	Cancelled int64            `json:"cancelled"`
	Completed int64            `json:"completed"`
	Revenue   int64            `json:"revenue"`
	ByRoom    []RoomRevenue    `json:"by_room"`
	Monthly   []MonthlyRevenue `json:"monthly"`
}

type DayDemand struct {
	Day      int   `json:"day"`
	Bookings int64 `json:"bookings"`
}

// EventKind names a reservation state change published to other systems.
type EventKind string

const (
	EventReservationCreated   EventKind = "reservation.created"
	EventReservationConfirmed EventKind = "reservation.confirmed"
	EventReservationCancelled EventKind = "reservation.cancelled"
	EventReservationCompleted EventKind = "reservation.completed"
)

// EventFor maps the status a reservation just entered to its event kind.
func EventFor(s ReservationStatus) EventKind {
	switch s {
	case StatusConfirmed:
		return EventReservationConfirmed
	case StatusCancelled:
		return EventReservationCancelled
	case StatusCompleted:
		return EventReservationCompleted
	default:
		return EventReservationCreated
	}
}
