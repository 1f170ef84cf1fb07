package orders

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/workshop/internal/platform/httpx"
	"github.com/odyssey-erp/workshop/internal/shared"
)

// Handler exposes service order endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	extensions []func(chi.Router)
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type listResponse struct {
	Orders     []Order           `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := shared.PageFromQuery(q)
	filter := ListFilter{Status: Status(q.Get("status")), Page: page, PerPage: perPage}
	filter.ClientID, _ = strconv.ParseInt(q.Get("client_id"), 10, 64)
	filter.VehicleID, _ = strconv.ParseInt(q.Get("vehicle_id"), 10, 64)
	filter.MechanicID, _ = strconv.ParseInt(q.Get("mechanic_id"), 10, 64)

	orders, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Orders: orders, Pagination: shared.NewPagination(page, perPage, total)})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
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
	id, ok := h.orderID(w, r)
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

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req UpdateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.service.Update(r.Context(), id, req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req CreateItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.AddItem(r.Context(), id, req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	itemID, err := httpx.IDParam(r, "itemID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req UpdateItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.UpdateItem(r.Context(), id, itemID, req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	itemID, err := httpx.IDParam(r, "itemID")
	if err != nil {
		h.fail(w, err)
		return
	}
	result, err := h.service.RemoveItem(r.Context(), id, itemID, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req DiscountRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.service.SetDiscount(r.Context(), id, req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.service.Transition(r.Context(), id, req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) assignMechanic(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req AssignMechanicRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.service.AssignMechanic(r.Context(), id, req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return 0, false
	}
	return id, true
}

// decode reads and tag-validates a request body.
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
