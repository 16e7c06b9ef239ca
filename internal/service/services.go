package service

import (
	"github.com/kirinyoku/staygo/internal/repository"
	redisrepo "github.com/kirinyoku/staygo/internal/repository/redis"
	"github.com/kirinyoku/staygo/internal/service/availability"
	"github.com/kirinyoku/staygo/internal/service/booking"
	"github.com/kirinyoku/staygo/internal/service/broadcast"
	"github.com/kirinyoku/staygo/internal/service/catalogue"
	"github.com/kirinyoku/staygo/internal/service/lifecycle"
	"github.com/kirinyoku/staygo/internal/service/pricing"
	"github.com/kirinyoku/staygo/internal/service/query"
)

type Services struct {
	Catalogue    *catalogue.Service
	Pricing      *pricing.Service
	Availability *availability.Service
	Booking      *booking.Service
	Lifecycle    *lifecycle.Service
	Query        *query.Service
}

type Config struct {
	Catalogue    catalogue.Config
	Availability availability.Config
	Booking      booking.Config
	Lifecycle    lifecycle.Config
	Query        query.Config
}

// NewServices wires the services over one store. cache, broadcaster and
// limiter may be nil.
func NewServices(
	store repository.Store,
	cache *redisrepo.Cache,
	broadcaster *broadcast.Broadcaster,
	limiter booking.Limiter,
	cfg Config,
) *Services {
	return &Services{
		Catalogue:    catalogue.New(store, cache, broadcaster, cfg.Catalogue),
		Pricing:      pricing.New(store),
		Availability: availability.New(store, cache, cfg.Availability),
		Booking:      booking.New(store, limiter, broadcaster, cfg.Booking),
		Lifecycle:    lifecycle.New(store, broadcaster, cfg.Lifecycle),
		Query:        query.New(store, cache, cfg.Query),
	}
}
