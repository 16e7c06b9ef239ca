package postgres

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/staygo/internal/repository"
)

const (
	defaultMaxAttempts = 5
	baseBackoff        = 10 * time.Millisecond
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

type Option func(*Store)

// WithMaxAttempts bounds how many times RunTx re-runs a transaction that
// failed with a serialization failure or deadlock.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func NewStore(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		maxAttempts: defaultMaxAttempts,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RunTx runs fn in a read-write transaction, SERIALIZABLE unless opts ask for
// READ COMMITTED, and retries the whole function on SQLSTATE 40001/40P01 with
// jittered exponential backoff.
//
// Units guarded by LockRange run at READ COMMITTED: a serializable snapshot is
// taken by the first statement, before the lock wait, so a waiter would count
// against a view that misses the holder's commit and fail with 40001.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repos) error,
	opts ...repository.TxOption,
) error {
	const op = "postgres.Store.RunTx"

	txOpts := pgxTxOptions(repository.NewTxOptions(opts...))

	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.runTxOnce(ctx, txOpts, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := baseBackoff << (attempt - 1)
		backoff += rand.N(backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s:%w", op, ctx.Err())
		case <-t.C:
		}
	}

	return fmt.Errorf("%s: gave up after %d attempts:%w", op, s.maxAttempts, err)
}

func pgxTxOptions(o repository.TxOptions) pgx.TxOptions {
	iso := pgx.Serializable
	if o.Isolation == repository.ReadCommitted {
		iso = pgx.ReadCommitted
	}

	return pgx.TxOptions{
		IsoLevel:   iso,
		AccessMode: pgx.ReadWrite,
	}
}

func (s *Store) runTxOnce(
	ctx context.Context,
	txOpts pgx.TxOptions,
	fn func(ctx context.Context, tx repository.Repos) error,
) error {
	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, repos{pool: s.pool, db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) RoomTypes() repository.RoomTypeRepository {
	return &RoomTypeRepo{pool: s.pool}
}

func (s *Store) Reservations() repository.ReservationRepository {
	return &ReservationRepo{pool: s.pool}
}

func (s *Store) Pricing() repository.PricingRepository {
	return &PricingRepo{pool: s.pool}
}

// repos binds every repository to one transaction handle.
type repos struct {
	pool *pgxpool.Pool
	db   DB
}

func (r repos) RoomTypes() repository.RoomTypeRepository {
	return (&RoomTypeRepo{pool: r.pool}).With(r.db)
}

func (r repos) Reservations() repository.ReservationRepository {
	return (&ReservationRepo{pool: r.pool}).With(r.db)
}

func (r repos) Pricing() repository.PricingRepository {
	return (&PricingRepo{pool: r.pool}).With(r.db)
}
