package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/staygo/internal/domain"
)

type RoomTypeRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *RoomTypeRepo) With(db DB) *RoomTypeRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *RoomTypeRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const roomColumns = `id, name, description, capacity, total_units, base_price_per_night,
	amenities, image_url, rating, created_at, updated_at`

// orderColumns whitelists the sortable columns so user input never reaches SQL.
var orderColumns = map[domain.RoomSortField]string{
	domain.SortByPrice:    "base_price_per_night",
	domain.SortByRating:   "rating",
	domain.SortByCapacity: "capacity",
	domain.SortByName:     "name",
}

func scanRoom(row pgx.Row, rt *domain.RoomType) error {
	return row.Scan(
		&rt.ID,
		&rt.Name,
		&rt.Description,
		&rt.Capacity,
		&rt.TotalUnits,
		&rt.BasePricePerNight,
		&rt.Amenities,
		&rt.ImageURL,
		&rt.Rating,
		&rt.CreatedAt,
		&rt.UpdatedAt,
	)
}

// Get retrieves a room type by its ID.
//
// Returns:
//   - *domain.RoomType: the room type when found.
//   - error: repository.ErrNotFound if the room type does not exist.
func (r *RoomTypeRepo) Get(ctx context.Context, id int64) (*domain.RoomType, error) {
	const op = "postgres.RoomTypeRepo.Get"

	db := r.handle()

	var rt domain.RoomType
	if err := scanRoom(db.QueryRow(ctx,
		`SELECT `+roomColumns+`
		 FROM room_types WHERE id = $1`,
		id,
	), &rt); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &rt, nil
}

func (r *RoomTypeRepo) List(ctx context.Context, sort domain.RoomSort) ([]domain.RoomType, error) {
	const op = "postgres.RoomTypeRepo.List"

	db := r.handle()

	sort = sort.Normalize()
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}

	rows, err := db.Query(ctx, fmt.Sprintf(
		`SELECT %s
		 FROM room_types
		 ORDER BY %s %s, id`,
		roomColumns, orderColumns[sort.Field], dir,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.RoomType
	for rows.Next() {
		var rt domain.RoomType
		if err := scanRoom(rows, &rt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *RoomTypeRepo) Create(ctx context.Context, rt *domain.RoomType) error {
	const op = "postgres.RoomTypeRepo.Create"

	db := r.handle()

	if err := db.QueryRow(ctx,
		`INSERT INTO room_types(name, description, capacity, total_units,
		                        base_price_per_night, amenities, image_url, rating)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		rt.Name, rt.Description, rt.Capacity, rt.TotalUnits,
		rt.BasePricePerNight, amenities(rt.Amenities), rt.ImageURL, rt.Rating,
	).Scan(&rt.ID, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *RoomTypeRepo) Update(ctx context.Context, rt *domain.RoomType) error {
	const op = "postgres.RoomTypeRepo.Update"

	db := r.handle()

	if err := db.QueryRow(ctx,
		`UPDATE room_types
		 SET name = $2, description = $3, capacity = $4, total_units = $5,
		     base_price_per_night = $6, amenities = $7, image_url = $8, rating = $9,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		rt.ID, rt.Name, rt.Description, rt.Capacity, rt.TotalUnits,
		rt.BasePricePerNight, amenities(rt.Amenities), rt.ImageURL, rt.Rating,
	).Scan(&rt.CreatedAt, &rt.UpdatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// amenities keeps the column NOT NULL for room types without amenities.
func amenities(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}
