package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// Migrate creates the tables and indexes if they do not exist yet.
func Migrate(ctx context.Context, db DB) error {
	const op = "postgres.Migrate"

	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
