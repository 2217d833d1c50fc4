package catalog

import (
	"errors"
	"time"
)

// Item is a trackable supply type. Stock figures are never stored on it.
type Item struct {
	ID               int64     `json:"id"`
	Denomination     string    `json:"denomination"`
	Category         string    `json:"category"`
	Model            string    `json:"model"`
	ContainerSize    int       `json:"container_size"`
	ContainerPrice   float64   `json:"container_price"`
	UnitPrice        float64   `json:"unit_price"`
	Barcode          string    `json:"barcode,omitempty"`
	ReorderThreshold float64   `json:"reorder_threshold"`
	CreatedAt        time.Time `json:"created_at"`
}

// Center is a consumption center workers are attached to.
type Center struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Worker consumes supplies on behalf of a center.
type Worker struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CenterID  int64     `json:"center_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ItemInput carries the editable fields of an item.
type ItemInput struct {
	Denomination     string  `json:"denomination" validate:"required,max=100"`
	Category         string  `json:"category" validate:"required,max=100"`
	Model            string  `json:"model" validate:"required,max=100"`
	ContainerSize    int     `json:"container_size" validate:"gt=0"`
	ContainerPrice   float64 `json:"container_price" validate:"gte=0"`
	UnitPrice        float64 `json:"unit_price" validate:"gte=0"`
	Barcode          string  `json:"barcode" validate:"omitempty,max=50"`
	ReorderThreshold float64 `json:"reorder_threshold" validate:"gte=0"`
}

// CenterInput creates a consumption center.
type CenterInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=200"`
}

// WorkerInput creates a worker assigned to a center.
type WorkerInput struct {
	Code     string `json:"code" validate:"required,max=20"`
	Name     string `json:"name" validate:"required,max=100"`
	CenterID int64  `json:"center_id" validate:"gt=0"`
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	Search string
	Limit  int
}

var (
	// ErrNotFound indicates a missing catalog record.
	ErrNotFound = errors.New("catalog: not found")
	// ErrDuplicate indicates a unique constraint violation (barcode, center name, worker code).
	ErrDuplicate = errors.New("catalog: duplicate entry")
	// ErrValidation wraps input validation failures.
	ErrValidation = errors.New("catalog: validation failed")
	// ErrStockUnderflow indicates a container size edit that would leave negative derived stock.
	ErrStockUnderflow = errors.New("catalog: container size would leave negative stock")
)

const ledgerEpsilon = 1e-6

// LedgerTotals sums an item's purchase and consumption history.
type LedgerTotals struct {
	PurchasedContainers float64
	ConsumedUnits       float64
}

// CoversConsumption reports whether the purchases, counted at containerSize
// units per container, still cover every consumed unit.
func (t LedgerTotals) CoversConsumption(containerSize int) bool {
	return t.PurchasedContainers*float64(containerSize)-t.ConsumedUnits > -ledgerEpsilon
}
