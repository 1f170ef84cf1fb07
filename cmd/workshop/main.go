package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/workshop/cmd/workshop/cli"
	"github.com/odyssey-erp/workshop/internal/app"
	"github.com/odyssey-erp/workshop/internal/ar"
	"github.com/odyssey-erp/workshop/internal/inventory"
	"github.com/odyssey-erp/workshop/internal/masterdata"
	"github.com/odyssey-erp/workshop/internal/observability"
	"github.com/odyssey-erp/workshop/internal/orders"
	"github.com/odyssey-erp/workshop/internal/platform/db"
	"github.com/odyssey-erp/workshop/internal/quotes"
	"github.com/odyssey-erp/workshop/internal/shared"
	"github.com/odyssey-erp/workshop/jobs"
	"github.com/odyssey-erp/workshop/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		if err := serve(ctx, cfg, logger); err != nil {
			logger.Error("server stopped", slog.Any("error", err))
			os.Exit(1)
		}
	case "migrate":
		version, err := db.Migrate(cfg.PGDSN, migrations.FS)
		if err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("schema up to date", slog.Uint64("version", uint64(version)))
	case "jobs":
		jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
		if err != nil {
			logger.Error("jobs cli", slog.Any("error", err))
			os.Exit(1)
		}
		code := cli.RunJobs(ctx, jobsCLI, args, os.Stdout, os.Stderr)
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
		os.Exit(code)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected serve, migrate or jobs)\n", command)
		os.Exit(2)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		return err
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	masterdataService := masterdata.NewService(masterdata.NewRepository(pool))
	inventoryService := inventory.NewService(inventory.NewRepository(pool), auditLogger, idempotencyStore)
	ordersService := orders.NewService(orders.NewRepository(pool), masterdataService, auditLogger)
	arService := ar.NewService(ar.NewRepository(pool), auditLogger, logger, ar.ServiceConfig{
		DefaultTermDays: cfg.ReceivableTermDays,
	})
	quotesService := quotes.NewService(quotes.NewRepository(pool), masterdataService, ordersService, auditLogger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		OrdersHandler:     orders.NewHandler(logger, ordersService),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		MasterDataHandler: masterdata.NewHandler(logger, masterdataService),
		ARHandler:         ar.NewHandler(logger, arService),
		QuotesHandler:     quotes.NewHandler(logger, quotesService),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           observability.NewMetrics(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
