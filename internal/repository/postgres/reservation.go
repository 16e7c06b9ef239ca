package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository"
)

// maxLockedNights is the widest stay locked night by night. Wider windows
// take an exclusive row lock on the room type instead.
const maxLockedNights = 366

var epoch = civil.Date{Year: 1970, Month: time.January, Day: 1}

type ReservationRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ReservationRepo) With(db DB) *ReservationRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ReservationRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const reservationColumns = `id, user_id, room_type_id, reference_code, check_in, check_out,
	guest_count, total_amount, notes, status, created_at, updated_at`

func scanReservation(row pgx.Row, res *domain.Reservation) error {
	var checkIn, checkOut time.Time
	var status string

	if err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.RoomTypeID,
		&res.ReferenceCode,
		&checkIn,
		&checkOut,
		&res.GuestCount,
		&res.TotalAmount,
		&res.Notes,
		&status,
		&res.CreatedAt,
		&res.UpdatedAt,
	); err != nil {
		return err
	}

	res.CheckIn = civil.DateOf(checkIn)
	res.CheckOut = civil.DateOf(checkOut)
	res.Status = domain.ReservationStatus(status)

	return nil
}

func collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, err
		}
		out = append(out, res)
	}

	return out, rows.Err()
}

// dateArg encodes a calendar date for a DATE parameter.
func dateArg(d civil.Date) time.Time {
	return d.In(time.UTC)
}

// LockRange takes a FOR SHARE lock on the room type row, so total_units cannot
// change underneath the booking, and a transaction-scoped advisory lock per
// night of the stay, so only bookers of overlapping nights queue behind each
// other. Stays wider than maxLockedNights lock the room type row exclusively.
//
// Returns:
//   - error: repository.ErrNoTx outside RunTx.
//   - error: repository.ErrNotFound if the room type does not exist.
func (r *ReservationRepo) LockRange(ctx context.Context, roomTypeID int64, stay domain.DateRange) error {
	const op = "postgres.ReservationRepo.LockRange"

	if r.db == nil {
		return fmt.Errorf("%s:%w", op, repository.ErrNoTx)
	}

	wide := stay.Nights() > maxLockedNights
	mode := "FOR SHARE"
	if wide {
		mode = "FOR UPDATE"
	}

	var id int64
	if err := r.db.QueryRow(ctx,
		`SELECT id FROM room_types WHERE id = $1 `+mode,
		roomTypeID,
	).Scan(&id); err != nil {
		return wrapDBErr(op, err)
	}

	if wide {
		return nil
	}

	if _, err := r.db.Exec(ctx,
		`SELECT pg_advisory_xact_lock($1::int4, d)
		 FROM generate_series($2::int4, $3::int4 - 1) AS d
		 ORDER BY d`,
		roomTypeID, stay.CheckIn.DaysSince(epoch), stay.CheckOut.DaysSince(epoch),
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *ReservationRepo) CountActiveOverlapping(ctx context.Context, roomTypeID int64, stay domain.DateRange) (int, error) {
	const op = "postgres.ReservationRepo.CountActiveOverlapping"

	db := r.handle()

	var n int
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM reservations
		 WHERE room_type_id = $1
		   AND status IN ('pending', 'confirmed')
		   AND check_in < $3
		   AND check_out > $2`,
		roomTypeID, dateArg(stay.CheckIn), dateArg(stay.CheckOut),
	).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

func (r *ReservationRepo) ActiveStays(ctx context.Context, roomTypeID int64, from civil.Date) ([]domain.DateRange, error) {
	const op = "postgres.ReservationRepo.ActiveStays"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT check_in, check_out
		 FROM reservations
		 WHERE room_type_id = $1
		   AND status IN ('pending', 'confirmed')
		   AND check_out > $2`,
		roomTypeID, dateArg(from),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.DateRange
	for rows.Next() {
		var in, until time.Time
		if err := rows.Scan(&in, &until); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, domain.DateRange{CheckIn: civil.DateOf(in), CheckOut: civil.DateOf(until)})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// Create inserts a reservation. A taken reference code does not abort the
// surrounding transaction, so the caller can retry with another code.
//
// Returns:
//   - error: repository.ErrConflict if the reference code is taken.
//   - error: repository.ErrNotFound if the room type does not exist.
func (r *ReservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	const op = "postgres.ReservationRepo.Create"

	db := r.handle()

	err := db.QueryRow(ctx,
		`INSERT INTO reservations(user_id, room_type_id, reference_code, check_in, check_out,
		                          guest_count, total_amount, notes, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (reference_code) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		res.UserID, res.RoomTypeID, res.ReferenceCode,
		dateArg(res.CheckIn), dateArg(res.CheckOut),
		res.GuestCount, res.TotalAmount, res.Notes, string(res.Status),
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *ReservationRepo) Get(ctx context.Context, id int64) (*domain.Reservation, error) {
	const op = "postgres.ReservationRepo.Get"

	db := r.handle()

	var res domain.Reservation
	if err := scanReservation(db.QueryRow(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations WHERE id = $1`,
		id,
	), &res); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &res, nil
}

func (r *ReservationRepo) GetByReference(ctx context.Context, code string) (*domain.Reservation, error) {
	const op = "postgres.ReservationRepo.GetByReference"

	db := r.handle()

	var res domain.Reservation
	if err := scanReservation(db.QueryRow(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations WHERE reference_code = $1`,
		strings.ToUpper(code),
	), &res); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &res, nil
}

// List returns reservations newest first. Zero filter fields match everything
// and a zero Limit means no limit.
func (r *ReservationRepo) List(ctx context.Context, f domain.ReservationFilter) ([]domain.Reservation, error) {
	const op = "postgres.ReservationRepo.List"

	db := r.handle()

	var limit any
	if f.Limit > 0 {
		limit = f.Limit
	}

	rows, err := db.Query(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE ($1::bigint = 0 OR user_id = $1)
		   AND ($2::text = '' OR status = $2)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		f.UserID, string(f.Status), limit, f.Offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectReservations(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// UpdateStatus is a compare-and-set on the status column.
//
// Returns:
//   - error: repository.ErrNotFound if the reservation does not exist.
//   - error: repository.ErrConflict if its status is no longer from.
func (r *ReservationRepo) UpdateStatus(
	ctx context.Context,
	id int64,
	from, to domain.ReservationStatus,
) (*domain.Reservation, error) {
	const op = "postgres.ReservationRepo.UpdateStatus"

	db := r.handle()

	var res domain.Reservation
	err := scanReservation(db.QueryRow(ctx,
		`UPDATE reservations
		 SET status = $3, updated_at = now()
		 WHERE id = $1 AND status = $2
		 RETURNING `+reservationColumns,
		id, string(from), string(to),
	), &res)
	if err == nil {
		return &res, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapDBErr(op, err)
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reservations WHERE id = $1)`,
		id,
	).Scan(&exists); err != nil {
		return nil, wrapDBErr(op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil, fmt.Errorf("%s:%w", op, repository.ErrConflict)
}

func (r *ReservationRepo) CompleteEnded(ctx context.Context, day civil.Date) ([]domain.Reservation, error) {
	const op = "postgres.ReservationRepo.CompleteEnded"

	db := r.handle()

	rows, err := db.Query(ctx,
		`UPDATE reservations
		 SET status = 'completed', updated_at = now()
		 WHERE status = 'confirmed' AND check_out <= $1
		 RETURNING `+reservationColumns,
		dateArg(day),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectReservations(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
