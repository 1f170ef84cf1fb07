package ar

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/workshop/internal/platform/httpx"
	"github.com/odyssey-erp/workshop/internal/shared"
)

// Handler exposes receivable endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/receivables", h.list)
	r.Get("/receivables/aging", h.aging)
	r.Get("/receivables/{id}", h.show)
	r.Post("/receivables/{id}/receipts", h.receipt)
	r.Post("/receivables/{id}/cancel", h.cancel)
	r.Post("/installments/{id}/payments", h.payInstallment)
	r.Patch("/installments/{id}", h.patchInstallment)
}

// MountOrderRoutes registers the generator under an order's /{id} route.
func (h *Handler) MountOrderRoutes(r chi.Router) {
	r.Post("/receivable", h.generate)
}

type listResponse struct {
	Receivables []Receivable      `json:"receivables"`
	Pagination  shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := shared.PageFromQuery(q)
	filter := ListFilter{Status: Status(q.Get("status")), Page: page, PerPage: perPage}
	filter.ClientID, _ = strconv.ParseInt(q.Get("client_id"), 10, 64)
	filter.OrderID, _ = strconv.ParseInt(q.Get("order_id"), 10, 64)

	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	if items == nil {
		items = []Receivable{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Receivables: items, Pagination: shared.NewPagination(page, perPage, total)})
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := parseDate("as_of", raw)
		if err != nil {
			h.fail(w, err)
			return
		}
		asOf = *parsed
	}
	bucket, err := h.service.Aging(r.Context(), asOf)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bucket)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.id(w, r)
	if !ok {
		return
	}
	var req GenerateRequest
	if !h.decode(w, r, &req) {
		return
	}
	opts, err := req.options(shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	rec, err := h.service.Generate(r.Context(), orderID, opts)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) receipt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	input, err := req.input(shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	rec, err := h.service.RegisterReceipt(r.Context(), id, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	rec, err := h.service.Cancel(r.Context(), id, req.Reason, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) payInstallment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	input, err := req.input(shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	inst, err := h.service.ApplyInstallmentPayment(r.Context(), id, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inst)
}

func (h *Handler) patchInstallment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var req InstallmentPatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	patch, err := req.patch(shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	inst, err := h.service.UpdateInstallment(r.Context(), id, patch)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inst)
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
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
