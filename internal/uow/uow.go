package uow

import (
	"context"

	"github.com/kirinyoku/staygo/internal/repository"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// UoW represents a unit of work.
type UoW struct {
	store repository.Store
}

func NewUoW(store repository.Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn inside a transaction. After a successful commit it executes the
// after-commit hooks registered by the attempt that committed; hooks of
// attempts the store retried are discarded.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repos, after func(AfterCommit)) error,
	opts ...repository.TxOption,
) error {
	var hooks []AfterCommit

	err := u.store.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
		hooks = hooks[:0]
		return fn(ctx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	}, opts...)
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
