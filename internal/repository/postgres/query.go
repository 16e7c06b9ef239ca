package postgres

import (
	"context"
	"time"

	"github.com/kirinyoku/staygo/internal/domain"
)

// Stats aggregates reservation counts per status and revenue from confirmed
// and completed stays, overall, per room type and for the last 12 check-in
// months that have any.
func (r *ReservationRepo) Stats(ctx context.Context) (*domain.ReservationStats, error) {
	const op = "postgres.ReservationRepo.Stats"

	db := r.handle()

	var st domain.ReservationStats
	if err := db.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COALESCE(SUM(total_amount) FILTER (WHERE status IN ('confirmed', 'completed')), 0)
		 FROM reservations`,
	).Scan(&st.Total, &st.Pending, &st.Confirmed, &st.Cancelled, &st.Completed, &st.Revenue); err != nil {
		return nil, wrapDBErr(op, err)
	}

	rows, err := db.Query(ctx,
		`SELECT rt.name, COUNT(r.id), COALESCE(SUM(r.total_amount), 0)
		 FROM reservations r
		 JOIN room_types rt ON rt.id = r.room_type_id
		 WHERE r.status IN ('confirmed', 'completed')
		 GROUP BY rt.name
		 ORDER BY COUNT(r.id) DESC, rt.name`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	for rows.Next() {
		var rr domain.RoomRevenue
		if err := rows.Scan(&rr.Name, &rr.Bookings, &rr.Revenue); err != nil {
			return nil, wrapDBErr(op, err)
		}
		st.ByRoom = append(st.ByRoom, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	monthly, err := db.Query(ctx,
		`SELECT to_char(check_in, 'YYYY-MM') AS month, COUNT(*), COALESCE(SUM(total_amount), 0)
		 FROM reservations
		 WHERE status IN ('confirmed', 'completed')
		 GROUP BY month
		 ORDER BY month DESC
		 LIMIT 12`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer monthly.Close()

	for monthly.Next() {
		var mr domain.MonthlyRevenue
		if err := monthly.Scan(&mr.Month, &mr.Bookings, &mr.Revenue); err != nil {
			return nil, wrapDBErr(op, err)
		}
		st.Monthly = append(st.Monthly, mr)
	}
	if err := monthly.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &st, nil
}

// DailyDemand counts active reservations per check-in day of the month.
func (r *ReservationRepo) DailyDemand(ctx context.Context, year int, month time.Month) ([]domain.DayDemand, error) {
	const op = "postgres.ReservationRepo.DailyDemand"

	db := r.handle()

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	rows, err := db.Query(ctx,
		`SELECT EXTRACT(DAY FROM check_in)::int AS day, COUNT(*)
		 FROM reservations
		 WHERE check_in >= $1 AND check_in < $2
		   AND status IN ('pending', 'confirmed')
		 GROUP BY day
		 ORDER BY day`,
		first, first.AddDate(0, 1, 0),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.DayDemand
	for rows.Next() {
		var d domain.DayDemand
		if err := rows.Scan(&d.Day, &d.Bookings); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
