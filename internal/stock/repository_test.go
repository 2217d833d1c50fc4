package stock

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapTxErr(t *testing.T) {
	plain := errors.New("connection reset")
	unique := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	cases := []struct {
		name     string
		err      error
		conflict bool
		keeps    error
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001", Message: "could not serialize access"}, conflict: true},
		{name: "deadlock", err: fmt.Errorf("platform/db: commit tx: %w", &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}), conflict: true},
		{name: "unique violation", err: unique, keeps: unique},
		{name: "plain error", err: plain, keeps: plain},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapTxErr(tc.err)
			if tc.conflict {
				require.ErrorIs(t, got, ErrConcurrencyConflict)
				require.NotErrorIs(t, got, ErrInsufficientStock)
				return
			}
			require.NotErrorIs(t, got, ErrConcurrencyConflict)
			require.ErrorIs(t, got, tc.keeps)
		})
	}
	require.NoError(t, mapTxErr(nil))
}
