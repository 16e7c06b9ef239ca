package postgres

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/staygo/internal/domain"
)

type PricingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PricingRepo) With(db DB) *PricingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PricingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *PricingRepo) Latest(ctx context.Context, roomTypeID int64, date civil.Date) (*domain.PricingSnapshot, error) {
	const op = "postgres.PricingRepo.Latest"

	db := r.handle()

	var snap domain.PricingSnapshot
	var day time.Time
	if err := db.QueryRow(ctx,
		`SELECT id, room_type_id, date, recorded_price, demand_factor, recorded_at
		 FROM pricing_snapshots
		 WHERE room_type_id = $1 AND date = $2
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT 1`,
		roomTypeID, dateArg(date),
	).Scan(
		&snap.ID,
		&snap.RoomTypeID,
		&day,
		&snap.RecordedPrice,
		&snap.DemandFactor,
		&snap.RecordedAt,
	); err != nil {
		return nil, wrapDBErr(op, err)
	}

	snap.Date = civil.DateOf(day)

	return &snap, nil
}

// Record appends a snapshot. repository.ErrNotFound if the room type does not exist.
func (r *PricingRepo) Record(ctx context.Context, snap *domain.PricingSnapshot) error {
	const op = "postgres.PricingRepo.Record"

	db := r.handle()

	if err := db.QueryRow(ctx,
		`INSERT INTO pricing_snapshots(room_type_id, date, recorded_price, demand_factor)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, recorded_at`,
		snap.RoomTypeID, dateArg(snap.Date), snap.RecordedPrice, snap.DemandFactor,
	).Scan(&snap.ID, &snap.RecordedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
