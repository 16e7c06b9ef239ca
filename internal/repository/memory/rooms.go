package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository"
)

type RoomTypeRepo struct {
	s  *Store
	tx *txState
}

func (r *RoomTypeRepo) Get(ctx context.Context, id int64) (*domain.RoomType, error) {
	const op = "memory.RoomTypeRepo.Get"

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rt, ok := r.s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}
	out := cloneRoom(rt)
	return &out, nil
}

func (r *RoomTypeRepo) List(ctx context.Context, sort domain.RoomSort) ([]domain.RoomType, error) {
	sort = sort.Normalize()

	r.s.mu.RLock()
	out := make([]domain.RoomType, 0, len(r.s.rooms))
	for _, rt := range r.s.rooms {
		out = append(out, cloneRoom(rt))
	}
	r.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.RoomType) int {
		c := compareRooms(a, b, sort.Field)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if sort.Desc {
			return -c
		}
		return c
	})

	return out, nil
}

func (r *RoomTypeRepo) Create(ctx context.Context, rt *domain.RoomType) error {
	const op = "memory.RoomTypeRepo.Create"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.nameTaken(rt.Name, 0) {
		return fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	r.s.nextRoomID++
	now := r.s.now().UTC()
	rt.ID = r.s.nextRoomID
	rt.CreatedAt = now
	rt.UpdatedAt = now
	r.s.rooms[rt.ID] = cloneRoom(*rt)

	id := rt.ID
	r.tx.onRollback(func() { delete(r.s.rooms, id) })

	return nil
}

func (r *RoomTypeRepo) Update(ctx context.Context, rt *domain.RoomType) error {
	const op = "memory.RoomTypeRepo.Update"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.rooms[rt.ID]
	if !ok {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}
	if r.s.nameTaken(rt.Name, rt.ID) {
		return fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	rt.CreatedAt = prev.CreatedAt
	rt.UpdatedAt = r.s.now().UTC()
	r.s.rooms[rt.ID] = cloneRoom(*rt)

	r.tx.onRollback(func() { r.s.rooms[prev.ID] = prev })

	return nil
}

// nameTaken must be called with s.mu held.
func (s *Store) nameTaken(name string, exceptID int64) bool {
	for id, rt := range s.rooms {
		if id != exceptID && strings.EqualFold(rt.Name, name) {
			return true
		}
	}
	return false
}

func cloneRoom(rt domain.RoomType) domain.RoomType {
	rt.Amenities = slices.Clone(rt.Amenities)
	return rt
}

func compareRooms(a, b domain.RoomType, field domain.RoomSortField) int {
	switch field {
	case domain.SortByRating:
		return cmp.Compare(a.Rating, b.Rating)
	case domain.SortByCapacity:
		return cmp.Compare(a.Capacity, b.Capacity)
	case domain.SortByName:
		return strings.Compare(a.Name, b.Name)
	default:
		return cmp.Compare(a.BasePricePerNight, b.BasePricePerNight)
	}
}
