package postgres

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/kirinyoku/staygo/internal/repository"
)

func TestPgxTxOptions(t *testing.T) {
	def := pgxTxOptions(repository.NewTxOptions())
	assert.Equal(t, pgx.Serializable, def.IsoLevel)
	assert.Equal(t, pgx.ReadWrite, def.AccessMode)

	rc := pgxTxOptions(repository.NewTxOptions(repository.WithIsolation(repository.ReadCommitted)))
	assert.Equal(t, pgx.ReadCommitted, rc.IsoLevel)
	assert.Equal(t, pgx.ReadWrite, rc.AccessMode)
}
