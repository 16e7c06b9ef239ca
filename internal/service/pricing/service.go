package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"cloud.google.com/go/civil"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository"
)

const (
	highDemandOccupancy = 0.8
	highDemandFactor    = 1.35
	midDemandOccupancy  = 0.5
	midDemandFactor     = 1.15
	baseFactor          = 1.0
)

// DemandFactor maps the occupancy of one night to a price multiplier.
func DemandFactor(occupancy float64) float64 {
	switch {
	case occupancy >= highDemandOccupancy:
		return highDemandFactor
	case occupancy >= midDemandOccupancy:
		return midDemandFactor
	default:
		return baseFactor
	}
}

// Apply multiplies a minor-unit amount by factor, rounding half away from zero.
func Apply(amount int64, factor float64) int64 {
	return int64(math.Round(float64(amount) * factor))
}

type Service struct {
	store repository.Store
}

func New(store repository.Store) *Service {
	return &Service{store: store}
}

// Quote prices one night of a room type.
//
// Returns:
//   - *domain.PriceQuote: the price breakdown.
//   - error: domain.ErrNotFound if the room type does not exist.
func (s *Service) Quote(ctx context.Context, roomTypeID int64, date civil.Date) (*domain.PriceQuote, error) {
	const op = "service.pricing.Quote"

	rt, err := s.store.RoomTypes().Get(ctx, roomTypeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, domain.RoomTypeNotFoundError{RoomTypeID: roomTypeID})
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	q, err := QuoteWith(ctx, s.store, rt, date)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &q, nil
}

// EffectivePrice is the amount of Quote.
func (s *Service) EffectivePrice(ctx context.Context, roomTypeID int64, date civil.Date) (int64, error) {
	q, err := s.Quote(ctx, roomTypeID, date)
	if err != nil {
		return 0, err
	}
	return q.Amount, nil
}

// QuoteWith prices one night of rt reading through repos, so the booking
// transaction sees the same data it is about to commit against. The latest
// snapshot for the date wins; otherwise the factor comes from the share of
// units already taken that night.
func QuoteWith(ctx context.Context, repos repository.Repos, rt *domain.RoomType, date civil.Date) (domain.PriceQuote, error) {
	const op = "service.pricing.QuoteWith"

	q := domain.PriceQuote{
		RoomTypeID: rt.ID,
		Date:       date,
		BasePrice:  rt.BasePricePerNight,
	}

	snap, err := repos.Pricing().Latest(ctx, rt.ID, date)
	switch {
	case err == nil:
		q.BasePrice = snap.RecordedPrice
		q.DemandFactor = snap.DemandFactor
		q.Source = domain.PriceFromSnapshot
		q.Amount = Apply(snap.RecordedPrice, snap.DemandFactor)
		return q, nil
	case !errors.Is(err, repository.ErrNotFound):
		return domain.PriceQuote{}, fmt.Errorf("%s:%w", op, err)
	}

	q.Source = domain.PriceFromDemand
	q.DemandFactor = baseFactor

	if rt.TotalUnits > 0 {
		taken, err := repos.Reservations().CountActiveOverlapping(ctx, rt.ID, domain.Night(date))
		if err != nil {
			return domain.PriceQuote{}, fmt.Errorf("%s:%w", op, err)
		}
		q.Occupancy = float64(taken) / float64(rt.TotalUnits)
		q.DemandFactor = DemandFactor(q.Occupancy)
	}

	q.Amount = Apply(rt.BasePricePerNight, q.DemandFactor)

	return q, nil
}

// RecordSnapshot appends an override price for a room type and date.
//
// Returns:
//   - error: domain.ErrInvalidArgument for a negative price or non-positive factor.
//   - error: domain.ErrNotFound if the room type does not exist.
func (s *Service) RecordSnapshot(
	ctx context.Context,
	roomTypeID int64,
	date civil.Date,
	recordedPrice int64,
	demandFactor float64,
) (*domain.PricingSnapshot, error) {
	const op = "service.pricing.RecordSnapshot"

	if recordedPrice < 0 {
		return nil, fmt.Errorf("%s:%w", op, domain.InvalidArgumentError{Field: "recorded_price", Reason: "must not be negative"})
	}
	if demandFactor <= 0 || math.IsNaN(demandFactor) || math.IsInf(demandFactor, 0) {
		return nil, fmt.Errorf("%s:%w", op, domain.InvalidArgumentError{Field: "demand_factor", Reason: "must be a positive number"})
	}
	if !date.IsValid() {
		return nil, fmt.Errorf("%s:%w", op, domain.InvalidArgumentError{Field: "date", Reason: "not a calendar date"})
	}

	snap := &domain.PricingSnapshot{
		RoomTypeID:    roomTypeID,
		Date:          date,
		RecordedPrice: recordedPrice,
		DemandFactor:  demandFactor,
	}
	if err := s.store.Pricing().Record(ctx, snap); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, domain.RoomTypeNotFoundError{RoomTypeID: roomTypeID})
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return snap, nil
}
