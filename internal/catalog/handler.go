package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-supplies/internal/platform/httpx"
)

// ServicePort is the subset of Service used by Handler.
type ServicePort interface {
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	CreateItem(ctx context.Context, in ItemInput) (Item, error)
	UpdateItem(ctx context.Context, id int64, in ItemInput) (Item, error)
	ListCenters(ctx context.Context) ([]Center, error)
	CreateCenter(ctx context.Context, in CenterInput) (Center, error)
	SetCenterActive(ctx context.Context, id int64, active bool) error
	ListWorkers(ctx context.Context, centerID int64) ([]Worker, error)
	CreateWorker(ctx context.Context, in WorkerInput) (Worker, error)
	SetWorkerActive(ctx context.Context, id int64, active bool) error
}

// Handler exposes catalog management as JSON endpoints.
type Handler struct {
	logger  *slog.Logger
	service ServicePort
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service ServicePort) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Post("/items", h.createItem)
	r.Get("/items/{id}", h.getItem)
	r.Put("/items/{id}", h.updateItem)
	r.Get("/centers", h.listCenters)
	r.Post("/centers", h.createCenter)
	r.Patch("/centers/{id}/active", h.setCenterActive)
	r.Get("/centers/{id}/workers", h.listWorkers)
	r.Post("/workers", h.createWorker)
	r.Patch("/workers/{id}/active", h.setWorkerActive)
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.service.ListItems(r.Context(), ItemFilter{Search: r.URL.Query().Get("q"), Limit: limit})
	if err != nil {
		h.fail(w, "list items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.fail(w, "get item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var in ItemInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	item, err := h.service.CreateItem(r.Context(), in)
	if err != nil {
		h.fail(w, "create item", err)
		return
	}
	h.logger.Info("item created", slog.Int64("item_id", item.ID), slog.String("denomination", item.Denomination))
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in ItemInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) listCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := h.service.ListCenters(r.Context())
	if err != nil {
		h.fail(w, "list centers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, centers)
}

func (h *Handler) createCenter(w http.ResponseWriter, r *http.Request) {
	var in CenterInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	center, err := h.service.CreateCenter(r.Context(), in)
	if err != nil {
		h.fail(w, "create center", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, center)
}

func (h *Handler) setCenterActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.SetCenterActive(r.Context(), id, req.Active); err != nil {
		h.fail(w, "set center active", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listWorkers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	workers, err := h.service.ListWorkers(r.Context(), id)
	if err != nil {
		h.fail(w, "list workers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, workers)
}

func (h *Handler) createWorker(w http.ResponseWriter, r *http.Request) {
	var in WorkerInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	worker, err := h.service.CreateWorker(r.Context(), in)
	if err != nil {
		h.fail(w, "create worker", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, worker)
}

func (h *Handler) setWorkerActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.SetWorkerActive(r.Context(), id, req.Active); err != nil {
		h.fail(w, "set worker active", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrStockUnderflow):
		httpx.Problem(w, http.StatusConflict, "Stock Underflow", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
