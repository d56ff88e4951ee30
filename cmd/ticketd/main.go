package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/activities"
	"github.com/Youmanvi/ticketreserve/internal/activities/notification"
	"github.com/Youmanvi/ticketreserve/internal/activities/registration"
	"github.com/Youmanvi/ticketreserve/internal/dispatch"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/backend"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/config"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/Youmanvi/ticketreserve/internal/middleware"
	"github.com/Youmanvi/ticketreserve/internal/ordering"
	"github.com/Youmanvi/ticketreserve/internal/reservation"
	"github.com/Youmanvi/ticketreserve/internal/store"
	"github.com/Youmanvi/ticketreserve/internal/store/memory"
	"github.com/Youmanvi/ticketreserve/internal/store/postgres"
	transporthttp "github.com/Youmanvi/ticketreserve/internal/transport/http"
	"github.com/Youmanvi/ticketreserve/internal/workflows"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", os.Getenv("APP_CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(&cfg.Observability)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ticketd stopped with error", err)
		os.Exit(1)
	}
	logger.Info("ticketd shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	// Audit log
	if cfg.Observability.AuditLogFile != "" {
		repo, err := observability.NewLogRepository(cfg.Observability.AuditLogFile, cfg.Observability.AuditBatchSize)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer func() {
			if err := repo.Close(); err != nil {
				logger.Error("failed to close audit log", err)
			}
		}()
		logger = logger.WithSink(repo)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	// Tracing
	tp, err := observability.InitializeTracing(ctx, &cfg.Observability, cfg.App.Name)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := observability.ShutdownTracing(shutdownCtx, tp); err != nil {
			logger.Error("failed to shut down tracing", err)
		}
	}()

	// Store
	st, closeStore, err := openStore(ctx, &cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Participant registration
	registrar := registration.NewGuardedRegistrar(
		registration.NewMockRegistrar(cfg.Registration.MockMinLatency, cfg.Registration.MockMaxLatency),
		logger, metrics, cfg.Registration,
	)

	// Notification delivery
	notifier, closeNotifier := openNotifier(&cfg.Notification)
	defer closeNotifier()

	registry := activities.NewActivityRegistry(&activities.ActivityDeps{
		Logger:          logger,
		Metrics:         metrics,
		Notifier:        notifier,
		RetryPolicy:     middleware.DefaultRetryPolicy(cfg.Notification.RetryMaxAttempts),
		TimeoutDuration: cfg.Notification.Timeout,
	})
	if err := workflows.RegisterWorkflows(registry); err != nil {
		return err
	}

	hub, err := backend.StartTaskHub(ctx, &cfg.TaskHub, registry, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := hub.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down task hub", err)
		}
	}()

	service := ordering.NewService(ordering.Deps{
		Store:       st,
		Coordinator: reservation.NewCoordinator(logger, metrics),
		Registrar:   registrar,
		Dispatcher:  dispatch.NewTaskHubDispatcher(hub.Client, logger, metrics, cfg.Notification.Timeout),
		Logger:      logger,
		Metrics:     metrics,
	})

	var gatherer prometheus.Gatherer
	if cfg.Observability.MetricsEnabled {
		gatherer = reg
	}
	handler := transporthttp.NewHandler(service, logger, cfg.App.Timeout)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           handler.Routes(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Logger.Info().Str("addr", srv.Addr).Str("store", cfg.Store.Type).Str("notifier", cfg.Notification.Type).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.StoreConfig, logger *observability.Logger) (store.Store, func(), error) {
	if cfg.Type == "memory" {
		return memory.New(cfg.LockTimeout), func() {}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	pg := postgres.New(pool, cfg.LockTimeout)
	if cfg.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("postgres schema migrated")
	}

	return pg, pool.Close, nil
}

func openNotifier(cfg *config.NotificationConfig) (notification.Notifier, func()) {
	if cfg.Type == "mock" {
		return notification.NewMockNotifier(), func() {}
	}

	writer := notification.NewKafkaWriter(cfg.KafkaBrokers)
	return notification.NewKafkaNotifier(writer, cfg.KafkaTopic), func() { _ = writer.Close() }
}
