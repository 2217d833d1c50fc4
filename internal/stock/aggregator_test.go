package stock

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-supplies/internal/catalog"
)

func TestAggregateScenarioA(t *testing.T) {
	item := catalog.Item{ID: 1, ContainerSize: 25, UnitPrice: 2}

	level, err := Aggregate(item, Totals{PurchasedContainers: 2})
	require.NoError(t, err)
	require.InDelta(t, 50, level.CurrentStock, 0.0001)
	require.Equal(t, int64(2), level.ContainersComplete)
	require.InDelta(t, 0, level.LeftoverUnits, 0.0001)

	level, err = Aggregate(item, Totals{PurchasedContainers: 2, ConsumedUnits: 12})
	require.NoError(t, err)
	require.InDelta(t, 38, level.CurrentStock, 0.0001)
	require.Equal(t, int64(1), level.ContainersComplete)
	require.InDelta(t, 13, level.LeftoverUnits, 0.0001)
	require.InDelta(t, 76, level.StockValue, 0.0001)
}

func TestAggregateFractionalContainers(t *testing.T) {
	item := catalog.Item{ContainerSize: 10, UnitPrice: 1.5}
	level, err := Aggregate(item, Totals{PurchasedContainers: 0.1 + 0.2, ConsumedUnits: 3})
	require.NoError(t, err)
	require.Zero(t, level.CurrentStock)
	require.Zero(t, level.ContainersComplete)
	require.Zero(t, level.LeftoverUnits)

	level, err = Aggregate(item, Totals{PurchasedContainers: 2.5, ConsumedUnits: 0.5})
	require.NoError(t, err)
	require.InDelta(t, 24.5, level.CurrentStock, 0.0001)
	require.Equal(t, int64(2), level.ContainersComplete)
	require.InDelta(t, 4.5, level.LeftoverUnits, 0.0001)
}

func TestAggregateRejectsBadContainerSize(t *testing.T) {
	for _, size := range []int{0, -4} {
		_, err := Aggregate(catalog.Item{ContainerSize: size}, Totals{PurchasedContainers: 1})
		require.ErrorIs(t, err, ErrConfiguration)
		_, _, err = Decompose(10, size)
		require.ErrorIs(t, err, ErrConfiguration)
	}
}

func TestAggregateMatchesLedgerSums(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 200; run++ {
		size := rng.Intn(48) + 1
		item := catalog.Item{ContainerSize: size, UnitPrice: 0.25}
		var purchased, consumed, expected float64
		purchases, consumptions := rng.Intn(12)+1, rng.Intn(12)
		for i := 0; i < purchases; i++ {
			containers := float64(rng.Intn(40)+1) / 4
			purchased += containers
			expected += containers * float64(size)
		}
		for i := 0; i < consumptions; i++ {
			units := float64(rng.Intn(20) + 1)
			if units > expected {
				continue
			}
			consumed += units
			expected -= units
		}

		level, err := Aggregate(item, Totals{PurchasedContainers: purchased, ConsumedUnits: consumed})
		require.NoError(t, err)
		require.InDelta(t, expected, level.CurrentStock, 0.0001)
		require.GreaterOrEqual(t, level.LeftoverUnits, 0.0)
		require.Less(t, level.LeftoverUnits, float64(size))
		recomposed := float64(level.ContainersComplete)*float64(size) + level.LeftoverUnits
		require.InDelta(t, level.CurrentStock, recomposed, 0.0001)
	}
}

func TestDecomposeBoundaries(t *testing.T) {
	cases := []struct {
		stock      float64
		size       int
		containers int64
		leftover   float64
	}{
		{stock: 0, size: 25, containers: 0, leftover: 0},
		{stock: 24.999, size: 25, containers: 0, leftover: 24.999},
		{stock: 25, size: 25, containers: 1, leftover: 0},
		{stock: 100, size: 1, containers: 100, leftover: 0},
		{stock: 7.5, size: 2, containers: 3, leftover: 1.5},
	}
	for _, tc := range cases {
		containers, leftover, err := Decompose(tc.stock, tc.size)
		require.NoError(t, err)
		require.Equal(t, tc.containers, containers, "stock %v size %d", tc.stock, tc.size)
		require.InDelta(t, tc.leftover, leftover, 0.0001)
		require.False(t, math.Signbit(leftover))
	}
}
