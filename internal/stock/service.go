package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-supplies/internal/catalog"
	"github.com/odyssey-erp/odyssey-supplies/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	WithReadTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListPurchases(ctx context.Context, filter LedgerFilter) ([]PurchaseEvent, error)
	ListConsumptions(ctx context.Context, filter LedgerFilter) ([]ConsumptionEvent, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against replayed writes.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AlertNotifier is told when a consumption leaves an item at or below its threshold.
type AlertNotifier interface {
	NotifyCritical(ctx context.Context, itemID int64) error
}

// Recorder receives ledger outcomes for metrics.
type Recorder interface {
	ObserveConsumption(outcome string)
	ObservePurchase()
}

// Outcome labels passed to Recorder.ObserveConsumption.
const (
	OutcomeCommitted    = "committed"
	OutcomeInsufficient = "insufficient_stock"
	OutcomeConflict     = "conflict"
	OutcomeRejected     = "rejected"
	OutcomeError        = "error"
)

const (
	moduleConsumption = "supplies.consumption"
	modulePurchase    = "supplies.purchase"

	releaseTimeout = 5 * time.Second
)

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// MaxRetries bounds how often a consumption aborted by ErrConcurrencyConflict is re-run.
	MaxRetries int
	Logger     *slog.Logger
	Metrics    Recorder
}

// Service coordinates the stock ledgers.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	notifier    AlertNotifier
	metrics     Recorder
	logger      *slog.Logger
	maxRetries  int
	now         func() time.Time
}

// NewService builds Service. audit, idem and notifier may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, notifier AlertNotifier, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		notifier:    notifier,
		metrics:     cfg.Metrics,
		logger:      logger,
		maxRetries:  retries,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// GetStock returns the current level and alert classification of an item.
func (s *Service) GetStock(ctx context.Context, itemID int64) (ItemStock, error) {
	var detail ItemStock
	err := s.repo.WithReadTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		totals, err := tx.ItemTotals(ctx, itemID)
		if err != nil {
			return err
		}
		detail, err = detailFor(ItemTotals{Item: item, Totals: totals})
		return err
	})
	if err != nil {
		return ItemStock{}, err
	}
	return detail, nil
}

// RecordPurchase appends a purchase. Purchases carry no stock precondition.
func (s *Service) RecordPurchase(ctx context.Context, in PurchaseInput) (PurchaseEvent, error) {
	if in.ItemID <= 0 {
		return PurchaseEvent{}, notFound(EntityItem, in.ItemID)
	}
	in.Containers = roundQuantity(in.Containers)
	in.PricePerContainer = roundQuantity(in.PricePerContainer)
	if !positive(in.Containers) || !positive(in.PricePerContainer) {
		return PurchaseEvent{}, ErrInvalidQuantity
	}
	release, err := s.claim(ctx, in.IdempotencyKey, modulePurchase)
	if err != nil {
		return PurchaseEvent{}, err
	}

	event := PurchaseEvent{
		ItemID:            in.ItemID,
		Containers:        in.Containers,
		PricePerContainer: in.PricePerContainer,
		Supplier:          in.Supplier,
		Lot:               in.Lot,
		Expiry:            in.Expiry,
		ActorID:           in.ActorID,
		PurchasedAt:       s.now(),
	}
	var size int
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItem(ctx, in.ItemID)
		if err != nil {
			return err
		}
		size = item.ContainerSize
		id, err := tx.InsertPurchase(ctx, event)
		if err != nil {
			return err
		}
		event.ID = id
		return nil
	})
	if err != nil {
		release()
		return PurchaseEvent{}, err
	}
	event = withPurchaseFigures(event, size)

	if s.metrics != nil {
		s.metrics.ObservePurchase()
	}
	s.record(ctx, shared.AuditLog{
		ActorID:  in.ActorID,
		Action:   "supplies:purchase",
		Entity:   "supply_purchase",
		EntityID: strconv.FormatInt(event.ID, 10),
		Meta: map[string]any{
			"item_id":             event.ItemID,
			"containers":          event.Containers,
			"price_per_container": event.PricePerContainer,
			"supplier":            event.Supplier,
			"lot":                 event.Lot,
		},
	})
	return event, nil
}

// RecordConsumption validates and appends a consumption. The item row stays
// locked from lookup until commit so concurrent consumptions of the same item
// run one after another and can never drive stock negative.
func (s *Service) RecordConsumption(ctx context.Context, in ConsumptionInput) (ConsumptionEvent, error) {
	in.Units = roundQuantity(in.Units)
	release, err := s.claim(ctx, in.IdempotencyKey, moduleConsumption)
	if err != nil {
		return ConsumptionEvent{}, err
	}

	var (
		event ConsumptionEvent
		item  catalog.Item
		after Level
	)
	for attempt := 0; ; attempt++ {
		event, item, after, err = s.consumeOnce(ctx, in)
		if err == nil || !errors.Is(err, ErrConcurrencyConflict) || attempt >= s.maxRetries {
			break
		}
		s.logger.Warn("consumption conflict, retrying",
			slog.Int64("item_id", in.ItemID),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
	}
	if err != nil {
		release()
		s.observeConsumption(consumptionOutcome(err))
		return ConsumptionEvent{}, err
	}
	s.observeConsumption(OutcomeCommitted)

	s.record(ctx, shared.AuditLog{
		ActorID:  in.ActorID,
		Action:   "supplies:consumption",
		Entity:   "supply_consumption",
		EntityID: strconv.FormatInt(event.ID, 10),
		Meta: map[string]any{
			"item_id":   event.ItemID,
			"center_id": event.CenterID,
			"worker_id": event.WorkerID,
			"units":     event.Units,
			"project":   event.Project,
		},
	})
	if c := Classify(after.CurrentStock, item.ReorderThreshold); c.NeedsRestock && s.notifier != nil {
		if err := s.notifier.NotifyCritical(ctx, item.ID); err != nil {
			s.logger.Warn("notify critical stock", slog.Int64("item_id", item.ID), slog.Any("error", err))
		}
	}
	return event, nil
}

func (s *Service) consumeOnce(ctx context.Context, in ConsumptionInput) (ConsumptionEvent, catalog.Item, Level, error) {
	var (
		event ConsumptionEvent
		item  catalog.Item
		after Level
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.LockItem(ctx, in.ItemID)
		if err != nil {
			return err
		}
		if !positive(in.Units) {
			return ErrInvalidQuantity
		}
		center, err := tx.GetCenter(ctx, in.CenterID)
		if err != nil {
			return err
		}
		worker, err := tx.GetWorker(ctx, in.WorkerID)
		if err != nil {
			return err
		}
		if worker.CenterID != center.ID {
			return ErrMismatchedAssignment
		}
		totals, err := tx.ItemTotals(ctx, item.ID)
		if err != nil {
			return err
		}
		level, err := Aggregate(item, totals)
		if err != nil {
			return itemErr(item.ID, err)
		}
		if !AvailableFor(level.CurrentStock, in.Units) {
			return &InsufficientStockError{Requested: in.Units, Available: level.CurrentStock}
		}
		event = ConsumptionEvent{
			ItemID:     item.ID,
			CenterID:   center.ID,
			WorkerID:   worker.ID,
			Units:      in.Units,
			Project:    in.Project,
			Notes:      in.Notes,
			ActorID:    in.ActorID,
			ConsumedAt: s.now(),
		}
		id, err := tx.InsertConsumption(ctx, event)
		if err != nil {
			return err
		}
		event.ID = id
		totals.ConsumedUnits += in.Units
		after, err = Aggregate(item, totals)
		return err
	})
	if err != nil {
		return ConsumptionEvent{}, catalog.Item{}, Level{}, err
	}
	return withConsumptionFigures(event, item.ContainerSize, item.UnitPrice), item, after, nil
}

// ListAlerts classifies every catalog item from a single snapshot.
func (s *Service) ListAlerts(ctx context.Context) (Alerts, error) {
	rows, err := s.snapshot(ctx)
	if err != nil {
		return Alerts{}, err
	}
	sortItems(rows)
	return BuildAlerts(rows)
}

// CriticalCount returns how many items are at or below their threshold.
func (s *Service) CriticalCount(ctx context.Context) (int, error) {
	alerts, err := s.ListAlerts(ctx)
	if err != nil {
		return 0, err
	}
	return len(alerts.Critical), nil
}

// ReportRows returns one row per item ordered by denomination, then type.
func (s *Service) ReportRows(ctx context.Context) ([]ReportRow, error) {
	rows, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sortItems(rows)
	report := make([]ReportRow, 0, len(rows))
	for _, row := range rows {
		level, err := Aggregate(row.Item, row.Totals)
		if err != nil {
			return nil, itemErr(row.Item.ID, err)
		}
		report = append(report, ReportRow{
			Item:           row.Item,
			PurchasedTotal: row.Totals.PurchasedContainers * float64(row.Item.ContainerSize),
			ConsumedTotal:  row.Totals.ConsumedUnits,
			Level:          level,
		})
	}
	return report, nil
}

// RemoveItem deletes an item together with its ledger history unless stock remains.
// Negative stock, left by ledger rows that predate a container size change, does not block removal.
func (s *Service) RemoveItem(ctx context.Context, itemID, actorID int64) error {
	var item catalog.Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.LockItem(ctx, itemID)
		if err != nil {
			return err
		}
		totals, err := tx.ItemTotals(ctx, itemID)
		if err != nil {
			return err
		}
		level, err := Aggregate(item, totals)
		if err != nil {
			return itemErr(itemID, err)
		}
		if level.CurrentStock > 0 {
			return fmt.Errorf("%w: %g units remaining", ErrItemHasStock, level.CurrentStock)
		}
		return tx.DeleteItem(ctx, itemID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "supplies:item_removed",
		Entity:   "supply_item",
		EntityID: strconv.FormatInt(itemID, 10),
		Meta:     map[string]any{"denomination": item.Denomination, "category": item.Category, "model": item.Model},
	})
	return nil
}

// ListPurchases lists purchases newest first.
func (s *Service) ListPurchases(ctx context.Context, filter LedgerFilter) ([]PurchaseEvent, error) {
	return s.repo.ListPurchases(ctx, normaliseFilter(filter))
}

// ListConsumptions lists consumptions newest first.
func (s *Service) ListConsumptions(ctx context.Context, filter LedgerFilter) ([]ConsumptionEvent, error) {
	return s.repo.ListConsumptions(ctx, normaliseFilter(filter))
}

func (s *Service) snapshot(ctx context.Context) ([]ItemTotals, error) {
	var rows []ItemTotals
	err := s.repo.WithReadTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rows, err = tx.AllTotals(ctx)
		return err
	})
	return rows, err
}

// claim reserves an idempotency key and returns the function that releases it on failure.
func (s *Service) claim(ctx context.Context, key, module string) (func(), error) {
	noop := func() {}
	if key == "" || s.idempotency == nil {
		return noop, nil
	}
	if _, err := uuid.Parse(key); err != nil {
		return noop, ErrInvalidIdempotencyKey
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, module); err != nil {
		return noop, err
	}
	return func() {
		// The request may already be cancelled; the key must still be freed for a retry.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := s.idempotency.Delete(rctx, key); err != nil {
			s.logger.Warn("release idempotency key", slog.String("module", module), slog.Any("error", err))
		}
	}, nil
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", log.Action), slog.Any("error", err))
	}
}

func (s *Service) observeConsumption(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveConsumption(outcome)
	}
}

func consumptionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return OutcomeInsufficient
	case errors.Is(err, ErrConcurrencyConflict):
		return OutcomeConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrMismatchedAssignment), errors.Is(err, ErrInvalidIdempotencyKey),
		errors.Is(err, shared.ErrIdempotencyConflict):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

func withPurchaseFigures(p PurchaseEvent, containerSize int) PurchaseEvent {
	p.Units = p.Containers * float64(containerSize)
	p.TotalCost = p.Containers * p.PricePerContainer
	if p.Units > 0 {
		p.UnitCost = p.TotalCost / p.Units
	}
	return p
}

func withConsumptionFigures(c ConsumptionEvent, containerSize int, unitPrice float64) ConsumptionEvent {
	c.Cost = c.Units * unitPrice
	if containerSize > 0 {
		c.ContainersEquivalent = c.Units / float64(containerSize)
	}
	return c
}

// sortItems orders by denomination, type, model and id using Spanish collation.
func sortItems(rows []ItemTotals) {
	col := collate.New(language.Spanish, collate.IgnoreCase)
	compare := func(a, b catalog.Item) int {
		if c := col.CompareString(a.Denomination, b.Denomination); c != 0 {
			return c
		}
		if c := col.CompareString(a.Category, b.Category); c != 0 {
			return c
		}
		if c := col.CompareString(a.Model, b.Model); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	}
	slices.SortStableFunc(rows, func(a, b ItemTotals) int { return compare(a.Item, b.Item) })
}

func normaliseFilter(filter LedgerFilter) LedgerFilter {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = defaultLedgerLimit
	}
	if filter.ItemID < 0 {
		filter.ItemID = 0
	}
	return filter
}

// Ledger quantities are stored as NUMERIC(14,4).
const (
	quantityScale = 1e4
	maxQuantity   = 1e10
)

// roundQuantity rounds v half away from zero to the ledger's four decimal places.
func roundQuantity(v float64) float64 {
	return math.Round(v*quantityScale) / quantityScale
}

// positive reports whether v is storable as a positive ledger quantity.
func positive(v float64) bool {
	return v > 0 && v < maxQuantity
}

func itemErr(itemID int64, err error) error {
	return fmt.Errorf("stock: item %d: %w", itemID, err)
}
