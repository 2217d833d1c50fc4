package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuditLogValidate(t *testing.T) {
	require.Error(t, AuditLog{Action: "supplies:purchase", Entity: "supply_purchase"}.Validate())
	require.NoError(t, AuditLog{Action: "supplies:purchase", Entity: "supply_purchase", EntityID: "1"}.Validate())
}

func TestNilStoresAreSafe(t *testing.T) {
	var store *IdempotencyStore
	require.Error(t, store.CheckAndInsert(context.Background(), "k", "m"))
	require.NoError(t, store.Delete(context.Background(), "k"))
	n, err := store.Cleanup(context.Background(), 0)
	require.NoError(t, err)
	require.Zero(t, n)

	var logger *AuditLogger
	require.Error(t, logger.Record(context.Background(), AuditLog{Action: "a", Entity: "b", EntityID: "c"}))
}

func TestIdempotencyArgumentsChecked(t *testing.T) {
	store := &IdempotencyStore{}
	require.ErrorIs(t, store.CheckAndInsert(context.Background(), "k", "m"), errStoreNotInitialised)
}
