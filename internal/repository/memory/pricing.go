package memory

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository"
)

type PricingRepo struct {
	s  *Store
	tx *txState
}

func (r *PricingRepo) Latest(ctx context.Context, roomTypeID int64, date civil.Date) (*domain.PricingSnapshot, error) {
	const op = "memory.PricingRepo.Latest"

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	// snapshots are append-only, so the last match is the most recent
	for i := len(r.s.snapshots) - 1; i >= 0; i-- {
		snap := r.s.snapshots[i]
		if snap.RoomTypeID == roomTypeID && snap.Date == date {
			return &snap, nil
		}
	}
	return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
}

func (r *PricingRepo) Record(ctx context.Context, snap *domain.PricingSnapshot) error {
	const op = "memory.PricingRepo.Record"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rooms[snap.RoomTypeID]; !ok {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	r.s.nextSnapshotID++
	snap.ID = r.s.nextSnapshotID
	snap.RecordedAt = r.s.now().UTC()
	r.s.snapshots = append(r.s.snapshots, *snap)

	n := len(r.s.snapshots) - 1
	r.tx.onRollback(func() { r.s.snapshots = r.s.snapshots[:n] })

	return nil
}
