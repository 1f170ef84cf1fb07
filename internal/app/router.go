package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/workshop/internal/ar"
	"github.com/odyssey-erp/workshop/internal/inventory"
	"github.com/odyssey-erp/workshop/internal/masterdata"
	"github.com/odyssey-erp/workshop/internal/observability"
	"github.com/odyssey-erp/workshop/internal/orders"
	"github.com/odyssey-erp/workshop/internal/platform/httpx"
	"github.com/odyssey-erp/workshop/internal/quotes"
	"github.com/odyssey-erp/workshop/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	OrdersHandler     *orders.Handler
	InventoryHandler  *inventory.Handler
	MasterDataHandler *masterdata.Handler
	ARHandler         *ar.Handler
	QuotesHandler     *quotes.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with workshop defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.OrdersHandler != nil {
		if params.ARHandler != nil {
			params.OrdersHandler.Extend(params.ARHandler.MountOrderRoutes)
		}
		r.Route("/orders", params.OrdersHandler.MountRoutes)
	}
	if params.ARHandler != nil {
		r.Route("/finance", params.ARHandler.MountRoutes)
	}
	if params.QuotesHandler != nil {
		r.Route("/quotes", params.QuotesHandler.MountRoutes)
	}
	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.MasterDataHandler != nil {
		r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
