// Package memory is an in-process implementation of repository.Store.
//
// Writes made inside RunTx are recorded in an undo log and reverted when the
// transaction function fails. Range locks taken with LockRange are held until
// RunTx returns. Reservations inserted inside RunTx are visible only to that
// transaction until it commits. Status changes are applied in place and
// reverted on rollback.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/rangelock"
	"github.com/kirinyoku/staygo/internal/repository"
)

type Store struct {
	mu sync.RWMutex

	rooms        map[int64]domain.RoomType
	reservations map[int64]domain.Reservation
	byRef        map[string]int64
	snapshots    []domain.PricingSnapshot
	// uncommitted maps reservations inserted by a running transaction to it.
	uncommitted map[int64]*txState

	nextRoomID     int64
	nextResID      int64
	nextSnapshotID int64

	locks *rangelock.Locker
	now   func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		rooms:        make(map[int64]domain.RoomType),
		reservations: make(map[int64]domain.Reservation),
		byRef:        make(map[string]int64),
		uncommitted:  make(map[int64]*txState),
		locks:        rangelock.New(),
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// txState is the per-transaction undo log and the range locks it holds.
type txState struct {
	mu       sync.Mutex
	undo     []func()
	releases []func()
	inserted []int64
}

func (t *txState) onRollback(fn func()) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.undo = append(t.undo, fn)
	t.mu.Unlock()
}

func (t *txState) hold(release func()) {
	t.mu.Lock()
	t.releases = append(t.releases, release)
	t.mu.Unlock()
}

type repos struct {
	s  *Store
	tx *txState
}

func (r repos) RoomTypes() repository.RoomTypeRepository {
	return &RoomTypeRepo{s: r.s, tx: r.tx}
}

func (r repos) Reservations() repository.ReservationRepository {
	return &ReservationRepo{s: r.s, tx: r.tx}
}

func (r repos) Pricing() repository.PricingRepository {
	return &PricingRepo{s: r.s, tx: r.tx}
}

func (s *Store) RoomTypes() repository.RoomTypeRepository {
	return repos{s: s}.RoomTypes()
}

func (s *Store) Reservations() repository.ReservationRepository {
	return repos{s: s}.Reservations()
}

func (s *Store) Pricing() repository.PricingRepository {
	return repos{s: s}.Pricing()
}

// RunTx runs fn with transaction-bound repositories. On error every write fn
// made is reverted in reverse order. Range locks are released in both cases.
// Isolation options are accepted and ignored.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repos) error,
	_ ...repository.TxOption,
) (err error) {
	const op = "memory.Store.RunTx"

	tx := &txState{}
	defer func() {
		if p := recover(); p != nil {
			s.rollback(tx)
			s.release(tx)
			panic(p)
		}
		if err != nil {
			s.rollback(tx)
		} else {
			s.commit(tx)
		}
		s.release(tx)
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return fn(ctx, repos{s: s, tx: tx})
}

// commit publishes the transaction's inserts to every other handle.
func (s *Store) commit(tx *txState) {
	tx.mu.Lock()
	inserted := tx.inserted
	tx.inserted = nil
	tx.undo = nil
	tx.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range inserted {
		delete(s.uncommitted, id)
	}
}

func (s *Store) rollback(tx *txState) {
	tx.mu.Lock()
	undo := tx.undo
	tx.undo = nil
	tx.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

func (s *Store) release(tx *txState) {
	tx.mu.Lock()
	releases := tx.releases
	tx.releases = nil
	tx.mu.Unlock()

	for _, r := range releases {
		r()
	}
}
