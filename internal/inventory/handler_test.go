package inventory

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo *memoryRepo) http.Handler {
	svc := NewService(repo, &recordingAudit{}, &memoryIdempotency{keys: map[string]bool{}})
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestHandleAdjustPostsMovement(t *testing.T) {
	router := newTestRouter(newMemoryRepo(Product{ID: 3, Name: "Brake pad", CurrentQuantity: qty("2")}))

	req := httptest.NewRequest(http.MethodPost, "/products/3/adjustments", strings.NewReader(`{"quantity":"5","type":"entry"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var got Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Product.CurrentQuantity.Equal(qty("7")))
	assert.True(t, got.Movement.PreviousQuantity.Equal(qty("2")))
}

func TestHandleAdjustRejectsUnknownType(t *testing.T) {
	router := newTestRouter(newMemoryRepo(Product{ID: 3, CurrentQuantity: qty("2")}))

	req := httptest.NewRequest(http.MethodPost, "/products/3/adjustments", strings.NewReader(`{"quantity":"1","type":"transfer"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "type")
}

func TestHandleProductNotFound(t *testing.T) {
	router := newTestRouter(newMemoryRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/99", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
