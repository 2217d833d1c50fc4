package catalog

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter() http.Handler {
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(newMemoryRepo())).MountRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func TestHandlerItemLifecycle(t *testing.T) {
	router := newTestRouter()

	rec := do(t, router, http.MethodPost, "/items", `{"denomination":"Lija","category":"Grano","model":"220","container_size":100,"unit_price":0.5,"barcode":"779001"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Item
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.NotZero(t, created.ID)

	rec = do(t, router, http.MethodPost, "/items", `{"denomination":"Lija","category":"Grano","model":"320","container_size":100,"barcode":"779001"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodPost, "/items", `{"denomination":"Lija","category":"Grano","model":"320","container_size":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/items/999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []Item
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&items))
	require.Len(t, items, 1)
}

func TestHandlerCentersAndWorkers(t *testing.T) {
	router := newTestRouter()

	rec := do(t, router, http.MethodPost, "/centers", `{"name":"Cabinas","description":"Cabinas de pintura"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var center Center
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&center))

	rec = do(t, router, http.MethodPost, "/workers", `{"code":"C1","name":"Muñoz Maximiliano","center_id":`+itoa(center.ID)+`}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodGet, "/centers/"+itoa(center.ID)+"/workers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var workers []Worker
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&workers))
	require.Len(t, workers, 1)
	require.Equal(t, "C1", workers[0].Code)

	rec = do(t, router, http.MethodPatch, "/centers/"+itoa(center.ID)+"/active", `{"active":false}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodPatch, "/workers/abc/active", `{"active":false}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func TestHandlerUpdateItemStockUnderflow(t *testing.T) {
	repo := newMemoryRepo()
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo)).MountRoutes(r)

	rec := do(t, r, http.MethodPost, "/items", `{"denomination":"Cinta","category":"Papel","model":"48mm","container_size":12}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Item
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	repo.ledgers[created.ID] = LedgerTotals{PurchasedContainers: 1, ConsumedUnits: 10}

	path := "/items/" + strconv.FormatInt(created.ID, 10)
	rec = do(t, r, http.MethodPut, path, `{"denomination":"Cinta","category":"Papel","model":"48mm","container_size":6}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "negative stock")

	rec = do(t, r, http.MethodPut, path, `{"denomination":"Cinta","category":"Papel","model":"48mm","container_size":10}`)
	require.Equal(t, http.StatusOK, rec.Code)
}
