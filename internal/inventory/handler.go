package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/platform/httpx"
	"github.com/odyssey-erp/workshop/internal/shared"
)

// IdempotencyHeader carries the client supplied adjustment key.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products/{id}", h.handleProduct)
	r.Post("/products/{id}/adjustments", h.handleAdjust)
	r.Get("/products/{id}/movements", h.handleMovements)
}

type adjustRequest struct {
	Quantity decimal.Decimal `json:"quantity" validate:"gte=0"`
	Type     MovementType    `json:"type" validate:"required,oneof=entry exit adjustment"`
	Notes    string          `json:"notes" validate:"max=500"`
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	result, err := h.service.AdjustStock(r.Context(), AdjustInput{
		ProductID:      id,
		Quantity:       req.Quantity,
		Type:           req.Type,
		Notes:          req.Notes,
		ActorID:        shared.ActorFromContext(r.Context()),
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	product, err := h.service.Product(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.Movements(r.Context(), id, limit)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}
