package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirinyoku/staygo/internal/repository"
)

// IsRetryable reports serialization failures and deadlocks.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}

	return false
}

func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		switch pge.Code {
		case "23505": // unique_violation
			return repository.ErrConflict
		case "23503": // foreign_key_violation
			return repository.ErrNotFound
		}
	}

	return err
}

// wrapDBErr translates err and prefixes it with op. Retryable errors keep the
// original pgconn error in the chain so RunTx can see it.
func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s:%w", op, translateDBErr(err))
}
