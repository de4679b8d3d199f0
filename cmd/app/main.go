package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/galaxium/api"
	"github.com/Domenick1991/galaxium/config"
	"github.com/Domenick1991/galaxium/internal/bootstrap"
	"github.com/Domenick1991/galaxium/internal/catalog"
	"github.com/Domenick1991/galaxium/internal/events"
	"github.com/Domenick1991/galaxium/internal/inventory"
	"github.com/Domenick1991/galaxium/internal/metrics"
	"github.com/Domenick1991/galaxium/internal/orchestrator"
	"github.com/Domenick1991/galaxium/internal/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	slot, closeSlot, err := openSlot(ctx, cfg)
	if err != nil {
		log.Fatalf("open session slot: %v", err)
	}
	defer closeSlot()

	store, err := session.Open(ctx, slot)
	if err != nil {
		log.Fatalf("open session: %v", err)
	}
	if u := store.CurrentUser(); u != nil {
		log.Printf("restored session for user %d", u.ID)
	}

	client := inventory.NewClient(cfg.Inventory.BaseURL, cfg.Inventory.Timeout(), inventory.WithObserver(m))
	flightCatalog := catalog.New(client)

	opts := []orchestrator.Option{orchestrator.WithMetrics(m)}
	if cfg.Kafka.Enabled() {
		producer := events.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		opts = append(opts, orchestrator.WithPublisher(events.NewBookingPublisher(
			producer,
			cfg.Kafka.BookingEventsTopic,
			events.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
			events.WithObserver(m),
		)))
	}

	orch := orchestrator.New(client, flightCatalog, store, opts...)
	defer orch.Close()

	if err := orch.RefreshCatalog(ctx); err != nil {
		log.Printf("initial flight load failed: %v", err)
	}

	router := bootstrap.NewRouter(cfg.HTTP, client,
		bootstrap.Route{Path: "/flights", Handler: api.NewFlightHandler(orch, flightCatalog)},
		bootstrap.Route{Path: "", Handler: api.NewBookingHandler(orch)},
	)

	if err := bootstrap.Run(ctx, cfg, router); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// openSlot picks the durable store for the session record.
func openSlot(ctx context.Context, cfg *config.Config) (session.Slot, func(), error) {
	sessionID := cfg.Session.ID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	switch cfg.Session.Backend {
	case config.SessionBackendMemory:
		return session.NewMemorySlot(), func() {}, nil

	case config.SessionBackendRedis:
		client := session.NewRedisClient(cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Printf("session %s stored in redis", sessionID)
		ttl := time.Duration(cfg.Session.TTLMinutes) * time.Minute
		return session.NewRedisSlot(client, sessionID, ttl), func() { _ = client.Close() }, nil

	case config.SessionBackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		slot := session.NewPostgresSlot(pool, sessionID)
		if err := slot.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Printf("session %s stored in postgres", sessionID)
		return slot, pool.Close, nil

	default:
		slot, err := session.OpenSQLiteSlot(cfg.Session.Path)
		if err != nil {
			return nil, nil, err
		}
		return slot, func() { _ = slot.Close() }, nil
	}
}
