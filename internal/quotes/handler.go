package quotes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/workshop/internal/orders"
	"github.com/odyssey-erp/workshop/internal/platform/httpx"
	"github.com/odyssey-erp/workshop/internal/shared"
)

// Handler exposes quote endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers quote endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Post("/items", h.addItem)
		r.Delete("/items/{itemID}", h.removeItem)
		r.Put("/discount", h.setDiscount)
		r.Post("/approve", h.approve)
		r.Post("/reject", h.reject)
		r.Post("/convert", h.convert)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	detail, err := h.service.Create(r.Context(), req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, detail)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req orders.CreateItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	detail, err := h.service.AddItem(r.Context(), id, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, detail)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	itemID, err := httpx.IDParam(r, "itemID")
	if err != nil {
		h.fail(w, err)
		return
	}
	detail, err := h.service.RemoveItem(r.Context(), id, itemID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req DiscountRequest
	if !h.decode(w, r, &req) {
		return
	}
	quote, err := h.service.SetDiscount(r.Context(), id, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	quote, err := h.service.Approve(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req RejectRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	quote, err := h.service.Reject(r.Context(), id, req.Reason, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req ConvertRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Convert(r.Context(), id, req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) quoteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		h.fail(w, err)
		return false
	}
	if err := httpx.Validate(target); err != nil {
		h.fail(w, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.logger, err)
}
