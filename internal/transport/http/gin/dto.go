package httpgin

import (
	"github.com/kirinyoku/staygo/internal/service/catalogue"
)

type CreateReservationRequest struct {
	RoomTypeID int64  `json:"room_type_id" binding:"required,gt=0"`
	CheckIn    string `json:"check_in" binding:"required"`
	CheckOut   string `json:"check_out" binding:"required"`
	Guests     int    `json:"guests" binding:"gte=0"`
	Notes      string `json:"notes" binding:"max=1000"`
}

type CreateRoomRequest struct {
	Name              string   `json:"name" binding:"required"`
	Description       string   `json:"description"`
	Capacity          int      `json:"capacity" binding:"required,gt=0"`
	TotalUnits        int      `json:"total_units" binding:"gte=0"`
	BasePricePerNight int64    `json:"base_price_per_night" binding:"gte=0"`
	Amenities         []string `json:"amenities"`
	ImageURL          string   `json:"image_url"`
	Rating            *float64 `json:"rating"`
}

func (r CreateRoomRequest) input() catalogue.RoomInput {
	return catalogue.RoomInput{
		Name:              r.Name,
		Description:       r.Description,
		Capacity:          r.Capacity,
		TotalUnits:        r.TotalUnits,
		BasePricePerNight: r.BasePricePerNight,
		Amenities:         r.Amenities,
		ImageURL:          r.ImageURL,
		Rating:            r.Rating,
	}
}

// UpdateRoomRequest changes only the fields present in the body.
type UpdateRoomRequest struct {
	Name              *string   `json:"name"`
	Description       *string   `json:"description"`
	Capacity          *int      `json:"capacity"`
	TotalUnits        *int      `json:"total_units"`
	BasePricePerNight *int64    `json:"base_price_per_night"`
	Amenities         *[]string `json:"amenities"`
	ImageURL          *string   `json:"image_url"`
	Rating            *float64  `json:"rating"`
}

func (r UpdateRoomRequest) patch() catalogue.RoomPatch {
	return catalogue.RoomPatch{
		Name:              r.Name,
		Description:       r.Description,
		Capacity:          r.Capacity,
		TotalUnits:        r.TotalUnits,
		BasePricePerNight: r.BasePricePerNight,
		Amenities:         r.Amenities,
		ImageURL:          r.ImageURL,
		Rating:            r.Rating,
	}
}

type RecordPriceRequest struct {
	Date          string  `json:"date" binding:"required"`
	RecordedPrice int64   `json:"recorded_price" binding:"gte=0"`
	DemandFactor  float64 `json:"demand_factor" binding:"required,gt=0"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type CompleteResponse struct {
	Completed int `json:"completed"`
}
