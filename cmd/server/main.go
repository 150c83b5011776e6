package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/ruralpay/banksim/docs"
	"github.com/ruralpay/banksim/internal/audit"
	"github.com/ruralpay/banksim/internal/config"
	"github.com/ruralpay/banksim/internal/database"
	"github.com/ruralpay/banksim/internal/events"
	"github.com/ruralpay/banksim/internal/handlers"
	"github.com/ruralpay/banksim/internal/logging"
	"github.com/ruralpay/banksim/internal/metrics"
	"github.com/ruralpay/banksim/internal/sequence"
	"github.com/ruralpay/banksim/internal/services"
	"github.com/ruralpay/banksim/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// @title Bank Simulator API
// @version 1.0
// @description Account lifecycle and balance mutations for the bank simulator
// @host localhost:8080
// @BasePath /api
// @schemes http https

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Swagger docs
	docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewPrometheusCollector(cfg.Ledger.MetricsNamespace)
	if err := collector.Register(registry); err != nil {
		return err
	}

	ledgerStore, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, err := database.InitRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	seq, err := openSequence(ctx, cfg.Ledger, redisClient)
	if err != nil {
		return err
	}

	var (
		publisher events.Publisher = events.NopPublisher{}
		health                     = func() map[string]string {
			return map[string]string{"store": cfg.Store.Driver}
		}
	)
	if redisClient != nil {
		redisPublisher := events.NewRedisPublisher(redisClient, cfg.Ledger.EventsKey, events.DefaultBreakerConfig(), collector, logger)
		publisher = redisPublisher
		health = func() map[string]string {
			return map[string]string{
				"store":  cfg.Store.Driver,
				"events": redisPublisher.State(),
			}
		}
	}

	opts := services.Options{
		Logger:    logger,
		Audit:     audit.NewAuditLogger(logger),
		Publisher: publisher,
		Metrics:   collector,
	}
	locker := services.NewAccountLocker()
	allocator := services.NewAccountNumberAllocator(ledgerStore, seq, cfg.Ledger.MaxAllocationAttempts, collector)

	router := handlers.NewRouter(handlers.RouterConfig{
		Accounts: services.NewAccountService(ledgerStore, allocator, locker, opts),
		Ledger:   services.NewLedgerService(ledgerStore, locker, opts),
		QR:       services.NewQRService(ledgerStore),
		ISO20022: services.NewISO20022Service(ledgerStore, services.ISO20022Config{
			Currency:   cfg.Ledger.Currency,
			BankBIC:    cfg.Ledger.BankBIC,
			MinorUnits: cfg.Ledger.MinorUnits,
		}),
		Logger:         logger,
		Gatherer:       registry,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Health:         health,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting",
			zap.String("addr", server.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.String("sequence", cfg.Ledger.SequenceBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (store.Store, func(), error) {
	if cfg.Store.Driver != config.StorePostgres {
		logger.Info("Using in-memory store")
		return store.NewMemoryStore(), func() {}, nil
	}

	db, err := database.InitDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}

	if cfg.Database.Migrate {
		if err := migrate(ctx, db, logger); err != nil {
			closeDB()
			return nil, nil, err
		}
	}
	return store.NewPostgresStore(db), closeDB, nil
}

func migrate(ctx context.Context, db *sql.DB, logger *logging.Logger) error {
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	logger.Info("Database schema is up to date")
	return nil
}

func openSequence(ctx context.Context, cfg config.LedgerConfig, client *redis.Client) (sequence.Sequence, error) {
	if cfg.SequenceBackend != config.SequenceRedis {
		return sequence.NewAtomicSequence(cfg.SequenceStart), nil
	}
	seq := sequence.NewRedisSequence(client, cfg.SequenceKey, cfg.SequenceStart)
	if err := seq.Init(ctx); err != nil {
		return nil, err
	}
	return seq, nil
}
