package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"qcdash/internal/aggregate"
	"qcdash/internal/amqp"
	"qcdash/internal/api"
	"qcdash/internal/cache"
	"qcdash/internal/cli"
	"qcdash/internal/config"
	apphttp "qcdash/internal/http"
	qclog "qcdash/internal/log"
	"qcdash/internal/middleware/ratelimit"
	"qcdash/internal/realtime"
	"qcdash/internal/services"
	"qcdash/internal/worker"
)

const (
	initialLoadTimeout = 30 * time.Second
	shutdownTimeout    = 30 * time.Second
	cacheSweepInterval = time.Minute
)

func main() {
	// .env is optional; real environment variables win.
	cfg, logger, err := cli.Setup()
	if err != nil {
		logger.Error("Configuration validation failed", qclog.FieldError, err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("Dashboard server stopped with error", qclog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *qclog.Logger) error {
	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	client, err := api.NewClient(cfg.APIBaseURL,
		api.WithTimeout(cfg.APITimeout),
		api.WithLogger(logger.WithComponent(qclog.ComponentAPI).Slog()))
	if err != nil {
		return err
	}

	views := cache.NewLRUCache[aggregate.Dashboard](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager(logger.WithComponent(qclog.ComponentCache).Slog())
	cacheManager.Register(views)
	cacheManager.StartCleanup(cacheSweepInterval)
	defer cacheManager.Stop()

	dashboard := services.NewDashboardService(client, views,
		logger.WithComponent(qclog.ComponentDashboard).Slog())

	hub := realtime.NewHub(logger.WithComponent(qclog.ComponentRealtime).Slog(),
		realtime.AllowOrigins(cfg.AllowedOrigins))
	defer hub.Close()
	dashboard.OnRefresh(func(st services.Status) {
		if dropped, err := hub.Broadcast(realtime.UpdateEvent(st.Generation, st.FetchedAt)); err != nil {
			logger.Warn("Failed to broadcast update", qclog.FieldError, err)
		} else if dropped > 0 {
			logger.Warn("Dropped slow websocket clients", "count", dropped)
		}
	})

	// Optional AMQP fan-out between dashboard instances.
	var (
		publisher  services.Publisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange,
			logger.WithComponent(qclog.ComponentAMQP).Slog())
		if err != nil {
			return err
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP update events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	inspections := services.NewInspectionService(client, dashboard, publisher,
		logger.WithComponent(qclog.ComponentDashboard).Slog())

	updates := worker.NewUpdateWorker(dashboard, logger.WithComponent(qclog.ComponentWorker).Slog())

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:           cfg.Addr(),
		Dashboard:      dashboard,
		Inspections:    inspections,
		Hub:            hub,
		Views:          views,
		Events:         updates,
		Logger:         logger,
		TrustedProxies: cfg.TrustedProxies,
		RateLimit:      ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		AMQPEnabled:    amqpClient != nil,
	})
	if err != nil {
		return err
	}

	// A failed initial load leaves /readyz at 503 until a later refresh
	// succeeds.
	loadCtx, cancel := context.WithTimeout(ctx, initialLoadTimeout)
	if st, err := dashboard.Refresh(loadCtx); err != nil {
		logger.Warn("Initial inspection load failed", qclog.FieldError, err)
	} else {
		logger.Info("Initial inspection load complete", qclog.FieldRecordCount, st.Count)
	}
	cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting qcdash server", "addr", srv.Addr, "api", client.BaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return dashboard.Run(gctx, cfg.RefreshInterval)
	})

	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.ConsumeUpdates(gctx, updates.HandleUpdateMessage)
		})
	}

	if cfg.RealtimeURL != "" {
		listener := realtime.NewListener(cfg.RealtimeURL, updates.HandlePush,
			logger.WithComponent(qclog.ComponentRealtime).Slog(),
			realtime.WithNamespace(cfg.RealtimeNamespace))
		g.Go(func() error {
			return listener.Run(gctx)
		})
	}

	return g.Wait()
}
