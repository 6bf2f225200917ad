package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcheckout "github.com/mkaroly/webshop-checkout/internal/application/checkout"
	"github.com/mkaroly/webshop-checkout/internal/domain/catalog"
	domorder "github.com/mkaroly/webshop-checkout/internal/domain/order"
	"github.com/mkaroly/webshop-checkout/internal/infrastructure/barion"
	"github.com/mkaroly/webshop-checkout/internal/infrastructure/id"
	"github.com/mkaroly/webshop-checkout/internal/infrastructure/memory"
	"github.com/mkaroly/webshop-checkout/internal/infrastructure/sqlite"
	"github.com/mkaroly/webshop-checkout/internal/infrastructure/worker"
	httppresentation "github.com/mkaroly/webshop-checkout/internal/presentation/http"
	"github.com/mkaroly/webshop-checkout/internal/pkg/config"
	"github.com/mkaroly/webshop-checkout/internal/pkg/logging"
	"github.com/mkaroly/webshop-checkout/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()

	logger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	checkoutMetrics := metrics.NewCheckout(prometheus.DefaultRegisterer)
	httpMetrics := metrics.NewHTTP(prometheus.DefaultRegisterer)

	var (
		products catalog.Repository
		orders   domorder.Repository
	)
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			logger.Fatal("sqlite_open_failed", zap.String("path", cfg.SQLitePath), zap.Error(err))
		}
		defer func() { _ = store.Close() }()
		products = store.Products()
		orders = store.Orders()
		logger.Info("store_sqlite", zap.String("path", cfg.SQLitePath))
	} else {
		products = memory.NewProductRepository()
		orders = memory.NewOrderRepository()
		logger.Info("store_memory")
	}

	gateway := barion.New(barion.Config{
		BaseURL:     cfg.BarionBaseURL,
		POSKey:      cfg.BarionPOSKey,
		PayeeEmail:  cfg.BarionPayeeEmail,
		RedirectURL: cfg.BarionRedirectURL,
		CallbackURL: cfg.BarionCallbackURL,
		Timeout:     cfg.GatewayTimeout,
	}, nil, logger)

	pool := worker.New(cfg.Workers, cfg.QueueSize, logger, checkoutMetrics.QueueDepth)
	pool.Start()

	reservations := appcheckout.NewReservationManager(products, logger)
	checkoutService := appcheckout.NewService(
		reservations,
		orders,
		gateway,
		pool,
		id.NewUUIDGenerator(),
		appcheckout.Options{
			Currency:       cfg.Currency,
			Locale:         cfg.Locale,
			PaymentWindow:  cfg.PaymentWindow,
			GatewayTimeout: cfg.GatewayTimeout,
		},
		checkoutMetrics,
		logger,
	)

	handler := httppresentation.NewHandler(checkoutService, logger, httpMetrics)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http_server_start", zap.String("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		logger.Info("http_server_stopped")
	}

	// Drain queued confirmation watchers before exiting; a watcher that
	// never runs would leave its reservation locked forever.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	defer cancelDrain()
	if err := pool.Stop(drainCtx); err != nil {
		logger.Error("task_pool_drain_error", zap.Error(err))
	}
}
