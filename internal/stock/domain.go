package stock

import (
	"time"

	"github.com/odyssey-erp/odyssey-supplies/internal/catalog"
)

// PurchaseEvent is an append-only replenishment entry.
type PurchaseEvent struct {
	ID                int64      `json:"id"`
	ItemID            int64      `json:"item_id"`
	Containers        float64    `json:"containers"`
	PricePerContainer float64    `json:"price_per_container"`
	Supplier          string     `json:"supplier,omitempty"`
	Lot               string     `json:"lot,omitempty"`
	Expiry            *time.Time `json:"expiry,omitempty"`
	ActorID           int64      `json:"actor_id,omitempty"`
	PurchasedAt       time.Time  `json:"purchased_at"`

	// Read-side figures, filled from the item's container size.
	Units     float64 `json:"units"`
	TotalCost float64 `json:"total_cost"`
	UnitCost  float64 `json:"unit_cost"`
}

// ConsumptionEvent is an append-only depletion entry attributed to a center and worker.
type ConsumptionEvent struct {
	ID         int64     `json:"id"`
	ItemID     int64     `json:"item_id"`
	CenterID   int64     `json:"center_id"`
	WorkerID   int64     `json:"worker_id"`
	Units      float64   `json:"units"`
	Project    string    `json:"project,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	ActorID    int64     `json:"actor_id,omitempty"`
	ConsumedAt time.Time `json:"consumed_at"`

	Cost                 float64 `json:"cost"`
	ContainersEquivalent float64 `json:"containers_equivalent"`
}

// PurchaseInput carries a proposed purchase.
type PurchaseInput struct {
	ItemID            int64
	Containers        float64
	PricePerContainer float64
	Supplier          string
	Lot               string
	Expiry            *time.Time
	ActorID           int64
	IdempotencyKey    string
}

// ConsumptionInput carries a proposed consumption.
type ConsumptionInput struct {
	ItemID         int64
	Units          float64
	CenterID       int64
	WorkerID       int64
	Project        string
	Notes          string
	ActorID        int64
	IdempotencyKey string
}

// Totals summarises an item's ledgers: containers bought and units consumed.
type Totals struct {
	PurchasedContainers float64
	ConsumedUnits       float64
}

// ItemTotals pairs a catalog item with its ledger totals.
type ItemTotals struct {
	Item   catalog.Item
	Totals Totals
}

// Level is the derived stock position of an item.
type Level struct {
	CurrentStock       float64 `json:"current_stock"`
	ContainersComplete int64   `json:"containers_complete"`
	LeftoverUnits      float64 `json:"leftover_units"`
	StockValue         float64 `json:"stock_value"`
}

// ItemStock is the stock detail of a single item including its alert classification.
type ItemStock struct {
	Item catalog.Item `json:"item"`
	Level
	Classification
}

// ReportRow is one line of the stock report.
type ReportRow struct {
	Item           catalog.Item `json:"item"`
	PurchasedTotal float64      `json:"purchased_total"`
	ConsumedTotal  float64      `json:"consumed_total"`
	Level
}

// LedgerFilter narrows purchase and consumption listings.
type LedgerFilter struct {
	ItemID int64
	Limit  int
}

const defaultLedgerLimit = 200
