package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-supplies/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-supplies/internal/shared"
)

// ServicePort is the subset of Service used by Handler.
type ServicePort interface {
	GetStock(ctx context.Context, itemID int64) (ItemStock, error)
	RecordPurchase(ctx context.Context, in PurchaseInput) (PurchaseEvent, error)
	RecordConsumption(ctx context.Context, in ConsumptionInput) (ConsumptionEvent, error)
	ListAlerts(ctx context.Context) (Alerts, error)
	ReportRows(ctx context.Context) ([]ReportRow, error)
	RemoveItem(ctx context.Context, itemID, actorID int64) error
	ListPurchases(ctx context.Context, filter LedgerFilter) ([]PurchaseEvent, error)
	ListConsumptions(ctx context.Context, filter LedgerFilter) ([]ConsumptionEvent, error)
}

// Header names read by Handler.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderActorID        = "X-Actor-ID"
)

// Handler exposes the ledger over JSON.
type Handler struct {
	logger   *slog.Logger
	service  ServicePort
	validate *validator.Validate
	group    singleflight.Group
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service ServicePort) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items/{id}/stock", h.getStock)
	r.Delete("/items/{id}", h.removeItem)
	r.Get("/purchases", h.listPurchases)
	r.Post("/purchases", h.recordPurchase)
	r.Get("/consumptions", h.listConsumptions)
	r.Post("/consumptions", h.recordConsumption)
	r.Get("/alerts", h.listAlerts)
	r.Get("/report", h.report)
}

type purchaseRequest struct {
	ItemID            int64   `json:"item_id"`
	Containers        float64 `json:"containers"`
	PricePerContainer float64 `json:"price_per_container"`
	Supplier          string  `json:"supplier" validate:"max=100"`
	Lot               string  `json:"lot" validate:"max=50"`
	Expiry            string  `json:"expiry" validate:"omitempty,datetime=2006-01-02"`
}

type consumptionRequest struct {
	ItemID   int64   `json:"item_id"`
	Units    float64 `json:"units"`
	CenterID int64   `json:"center_id"`
	WorkerID int64   `json:"worker_id"`
	Project  string  `json:"project" validate:"max=100"`
	Notes    string  `json:"notes" validate:"max=500"`
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.GetStock(r.Context(), id)
	if err != nil {
		h.fail(w, "get stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveItem(r.Context(), id, actorID(r)); err != nil {
		h.fail(w, "remove item", err)
		return
	}
	h.logger.Info("item removed", slog.Int64("item_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := PurchaseInput{
		ItemID:            req.ItemID,
		Containers:        req.Containers,
		PricePerContainer: req.PricePerContainer,
		Supplier:          strings.TrimSpace(req.Supplier),
		Lot:               strings.TrimSpace(req.Lot),
		ActorID:           actorID(r),
		IdempotencyKey:    strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)),
	}
	if req.Expiry != "" {
		expiry, _ := time.Parse(time.DateOnly, req.Expiry)
		in.Expiry = &expiry
	}
	event, err := h.service.RecordPurchase(r.Context(), in)
	if err != nil {
		h.fail(w, "record purchase", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, event)
}

func (h *Handler) recordConsumption(w http.ResponseWriter, r *http.Request) {
	var req consumptionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	event, err := h.service.RecordConsumption(r.Context(), ConsumptionInput{
		ItemID:         req.ItemID,
		Units:          req.Units,
		CenterID:       req.CenterID,
		WorkerID:       req.WorkerID,
		Project:        strings.TrimSpace(req.Project),
		Notes:          strings.TrimSpace(req.Notes),
		ActorID:        actorID(r),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)),
	})
	if err != nil {
		h.fail(w, "record consumption", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, event)
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListPurchases(r.Context(), ledgerFilter(r))
	if err != nil {
		h.fail(w, "list purchases", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) listConsumptions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListConsumptions(r.Context(), ledgerFilter(r))
	if err != nil {
		h.fail(w, "list consumptions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	v, err := h.shared(r.Context(), "alerts", func(ctx context.Context) (any, error) {
		return h.service.ListAlerts(ctx)
	})
	if err != nil {
		h.fail(w, "list alerts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	v, err := h.shared(r.Context(), "report", func(ctx context.Context) (any, error) {
		return h.service.ReportRows(ctx)
	})
	if err != nil {
		h.fail(w, "report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

// shared coalesces concurrent reads of the same key. The leader runs detached
// from its request so one cancelled client does not fail the others.
func (h *Handler) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := h.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// fail maps ledger errors to problem responses carrying a stable reason code.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	var insufficient *InsufficientStockError
	var missing *NotFoundError
	switch {
	case errors.As(err, &insufficient):
		httpx.ProblemWith(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error(), map[string]any{
			"code":      "insufficient_stock",
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.As(err, &missing):
		httpx.ProblemWith(w, http.StatusNotFound, "Not Found", err.Error(), map[string]any{
			"code":   "not_found",
			"entity": missing.Entity,
		})
	case errors.Is(err, ErrInvalidQuantity):
		problem(w, http.StatusBadRequest, "Invalid Quantity", "invalid_quantity", err)
	case errors.Is(err, ErrInvalidIdempotencyKey):
		problem(w, http.StatusBadRequest, "Invalid Idempotency Key", "invalid_idempotency_key", err)
	case errors.Is(err, ErrMismatchedAssignment):
		problem(w, http.StatusUnprocessableEntity, "Mismatched Assignment", "mismatched_assignment", err)
	case errors.Is(err, ErrConcurrencyConflict):
		w.Header().Set("Retry-After", "1")
		problem(w, http.StatusConflict, "Concurrency Conflict", "concurrency_conflict", err)
	case errors.Is(err, ErrItemHasStock):
		problem(w, http.StatusConflict, "Item Has Stock", "item_has_stock", err)
	case errors.Is(err, shared.ErrIdempotencyConflict):
		problem(w, http.StatusConflict, "Duplicate Request", "idempotency_conflict", err)
	case errors.Is(err, ErrConfiguration):
		h.logger.Error(op+" failed", slog.Any("error", err))
		problem(w, http.StatusInternalServerError, "Configuration Error", "configuration_error", err)
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func problem(w http.ResponseWriter, status int, title, code string, err error) {
	httpx.ProblemWith(w, status, title, err.Error(), map[string]any{"code": code})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("invalid id %q", chi.URLParam(r, "id")))
		return 0, false
	}
	return id, true
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get(HeaderActorID), 10, 64)
	return id
}

func ledgerFilter(r *http.Request) LedgerFilter {
	q := r.URL.Query()
	itemID, _ := strconv.ParseInt(q.Get("item_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	return LedgerFilter{ItemID: itemID, Limit: limit}
}
