package stock

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("stock: not found")
	// ErrInvalidQuantity indicates a non-positive quantity or price.
	ErrInvalidQuantity = errors.New("stock: quantity must be positive")
	// ErrInsufficientStock is matched by every InsufficientStockError.
	ErrInsufficientStock = errors.New("stock: insufficient stock")
	// ErrMismatchedAssignment indicates the worker does not belong to the center.
	ErrMismatchedAssignment = errors.New("stock: worker is not assigned to center")
	// ErrConfiguration indicates an item whose container size cannot be decomposed.
	ErrConfiguration = errors.New("stock: container size must be positive")
	// ErrConcurrencyConflict indicates the transaction was aborted by the database and may be retried.
	ErrConcurrencyConflict = errors.New("stock: concurrent update conflict")
	// ErrItemHasStock prevents deleting an item that still holds stock.
	ErrItemHasStock = errors.New("stock: item still has stock")
	// ErrInvalidIdempotencyKey indicates a malformed Idempotency-Key.
	ErrInvalidIdempotencyKey = errors.New("stock: idempotency key must be a UUID")
)

// Entity names reported by NotFoundError.
const (
	EntityItem   = "item"
	EntityCenter = "center"
	EntityWorker = "worker"
)

// NotFoundError reports which referenced entity is missing.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("stock: %s %d not found", e.Entity, e.ID)
}

// Is allows errors.Is(err, ErrNotFound).
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InsufficientStockError reports the requested and available quantities.
type InsufficientStockError struct {
	Requested float64
	Available float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient stock: requested %g, available %g", e.Requested, e.Available)
}

// Is allows errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

func notFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}
