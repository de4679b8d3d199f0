package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/galaxium/config"
	"github.com/Domenick1991/galaxium/internal/events"
	"github.com/Domenick1991/galaxium/internal/inventory"
	"github.com/Domenick1991/galaxium/internal/metrics"
	"github.com/Domenick1991/galaxium/internal/notify"
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
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.NotificationsTopic == "" {
		log.Fatalf("kafka brokers and notifications_topic are required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	sender := notify.NewSender(notify.WithObserver(m))

	consumer := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	go func() {
		err := consumer.Consume(ctx, events.BookingEvents(func(ctx context.Context, ev events.BookingEvent) error {
			log.Printf("worker: %s for booking %d", ev.Type, ev.BookingID)
			return sender.Send(ctx, ev)
		}))
		if err != nil {
			log.Printf("consumer stopped: %v", err)
			stop()
		}
	}()

	client := inventory.NewClient(cfg.Inventory.BaseURL, cfg.Inventory.Timeout(), inventory.WithObserver(m))
	healthTicker := time.NewTicker(time.Duration(cfg.Worker.HealthCheckSeconds) * time.Second)
	defer healthTicker.Stop()

	for {
		select {
		case <-healthTicker.C:
			if err := client.Ping(ctx); err != nil {
				log.Printf("inventory service unreachable: %v", err)
			}
		case <-ctx.Done():
			log.Printf("shutting down")
			return
		}
	}
}
