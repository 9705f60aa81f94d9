package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockwatch/bus"
	"stockwatch/config"
	"stockwatch/db"
	"stockwatch/metrics"
	"stockwatch/monitoring"
	"stockwatch/notify"
	"stockwatch/orchestrator"
	"stockwatch/pipeline"
	"stockwatch/quote"
	"stockwatch/secrets"
	"stockwatch/store"
	"stockwatch/stream"
	"stockwatch/utils"
)

func main() {
	// Load environment variables; a missing .env is fine in production.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := utils.InitLogger(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger := utils.Logger
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage backend
	var backing store.Store
	switch cfg.Store.Backend {
	case "clickhouse":
		ch, err := db.NewClickHouseStore(
			cfg.Store.ClickHouse.Host,
			cfg.Store.ClickHouse.Port,
			cfg.Store.ClickHouse.Database,
			cfg.Store.ClickHouse.User,
			cfg.Store.ClickHouse.Password,
		)
		if err != nil {
			logger.Fatalw("Failed to initialize ClickHouse store", "error", err)
		}
		defer ch.Close()
		monitoring.RegisterHealthCheck("clickhouse", func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return ch.Ping(pingCtx) == nil
		})
		backing = ch
	default:
		backing = store.NewMemoryStore()
	}

	// Event bus backend
	var eventBus bus.Bus
	switch cfg.Bus.Backend {
	case "kafka":
		kb := bus.NewKafkaBus(cfg.Bus.Brokers, cfg.Bus.Topic, logger)
		defer kb.Close()
		eventBus = kb
	default:
		eventBus = bus.NewMemoryBus(logger)
	}

	// Terminal consumer: websocket subscribers plus the structured log.
	hub := notify.NewHub(logger)
	go hub.Run(ctx)
	notifier := notify.Multi{hub, notify.NewLogNotifier(logger)}

	gateway := quote.NewClient(cfg.Quote.BaseURL, cfg.Fetch.Timeout, logger)
	creds := secrets.NewEnvSource()

	p := pipeline.New(pipeline.Options{
		Store:    backing,
		Gateway:  gateway,
		Secrets:  creds,
		Bus:      eventBus,
		Notifier: notifier,
		Log:      logger,

		StreamBuffer: cfg.Stream.Buffer,
		Consumer: stream.ConsumerConfig{
			BatchSize:  cfg.Stream.BatchSize,
			Window:     cfg.Stream.Window,
			MaxRetries: cfg.Stream.MaxRetries,
		},
		Runner: orchestrator.RunnerConfig{
			SecretName:   cfg.Fetch.SecretName,
			Concurrency:  cfg.Fetch.Concurrency,
			FetchTimeout: cfg.Fetch.Timeout,
		},
		QueueMaxReceives: cfg.Queue.MaxReceives,
		RouterRule:       cfg.Router.Rule,
	})

	if err := p.Seeder.Seed(ctx, cfg.Symbols); err != nil {
		logger.Errorw("Some symbols failed to seed", "error", err)
	}

	p.Start(ctx)

	scheduler := orchestrator.NewScheduler(p.Runner, cfg.Fetch.Interval, logger)
	go scheduler.Start(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", monitoring.HealthCheckHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/stats", metrics.StatsHandler)
	mux.Handle("/ws", hub)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: utils.RequestLogger(mux),
	}

	go func() {
		logger.Infow("HTTP server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Infow("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("HTTP server shutdown error", "error", err)
	}
}
