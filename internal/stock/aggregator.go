package stock

import (
	"math"

	"github.com/odyssey-erp/odyssey-supplies/internal/catalog"
)

// epsilon absorbs float noise from fractional containers.
const epsilon = 1e-6

// Aggregate derives the stock level of item from its ledger totals.
// It is pure and safe for concurrent use.
func Aggregate(item catalog.Item, totals Totals) (Level, error) {
	if item.ContainerSize <= 0 {
		return Level{}, ErrConfiguration
	}
	current := totals.PurchasedContainers*float64(item.ContainerSize) - totals.ConsumedUnits
	if math.Abs(current) < epsilon {
		current = 0
	}
	containers, leftover, err := Decompose(current, item.ContainerSize)
	if err != nil {
		return Level{}, err
	}
	return Level{
		CurrentStock:       current,
		ContainersComplete: containers,
		LeftoverUnits:      leftover,
		StockValue:         current * item.UnitPrice,
	}, nil
}

// Decompose splits stock into whole containers and leftover units so that
// stock == containers*size + leftover and 0 <= leftover < size.
func Decompose(stock float64, size int) (int64, float64, error) {
	if size <= 0 {
		return 0, 0, ErrConfiguration
	}
	s := float64(size)
	containers := math.Floor(stock / s)
	leftover := stock - containers*s
	if leftover < 0 {
		containers--
		leftover += s
	}
	if leftover >= s {
		containers++
		leftover -= s
	}
	if math.Abs(leftover) < epsilon {
		leftover = 0
	}
	return int64(containers), leftover, nil
}

// AvailableFor reports whether units can be drawn from current without going negative.
func AvailableFor(current, units float64) bool {
	return units <= current+epsilon
}
