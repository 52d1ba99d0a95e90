// Package main is the entry point for the contabil background worker.
// It relays domain events from the transactional outbox to Kafka.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"contabil/internal/infrastructure/config"
	"contabil/internal/infrastructure/messaging/kafka"
	"contabil/internal/infrastructure/storage/postgres"
	"contabil/pkg/logger"
)

func main() {
	fs := config.Flags("worker")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Printf("invalid arguments: %v\n", err)
		os.Exit(2)
	}
	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Infow("starting contabil outbox worker",
		"brokers", cfg.Kafka.Brokers,
		"topic", cfg.Kafka.Topic,
		"poll_interval", cfg.Outbox.PollInterval,
	)

	if err := cfg.RequireDatabase(); err != nil {
		log.Fatalw("database is not configured", "error", err)
	}
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = 4
	poolCfg.ApplicationName = "contabil-worker"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}

	txOpts := postgres.DefaultTxOptions()
	txOpts.StatementTimeout = cfg.Database.StatementTimeout
	txOpts.LockTimeout = cfg.Database.LockTimeout
	txManager := postgres.NewTxManagerWithOptions(pool, txOpts)

	handler := kafka.NewHandler(kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	relay := postgres.NewOutboxRelay(txManager, cfg.Outbox.BatchSize, handler)
	worker := NewWorker(relay, pool, cfg.Outbox.PollInterval, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	wg.Wait()

	pool.Close()
	if err := multierr.Combine(handler.Close(), log.Sync()); err != nil {
		fmt.Printf("shutdown: %v\n", err)
	}
	log.Info("worker stopped")
}

// Worker polls the outbox and hands pending messages to the relay.
type Worker struct {
	relay        *postgres.OutboxRelay
	pool         *postgres.Pool
	pollInterval time.Duration
	log          *logger.Logger
}

func NewWorker(relay *postgres.OutboxRelay, pool *postgres.Pool, pollInterval time.Duration, log *logger.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		relay:        relay,
		pool:         pool,
		pollInterval: pollInterval,
		log:          log.WithComponent("outbox"),
	}
}

// Run processes batches until ctx is cancelled. A full batch is followed
// immediately by the next one; otherwise the worker waits for the ticker.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	dlqTicker := time.NewTicker(time.Hour)
	defer dlqTicker.Stop()

	statsTicker := time.NewTicker(5 * time.Minute)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-dlqTicker.C:
			moved, err := w.relay.MoveToDLQ(ctx)
			if err != nil {
				w.log.Errorw("failed to move messages to DLQ", "error", err)
				continue
			}
			if moved > 0 {
				w.log.Warnw("moved failed outbox messages to DLQ", "count", moved)
			}
		case <-statsTicker.C:
			w.pool.LogStats(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		if n > 0 {
			w.log.Debugw("relayed outbox batch", "count", n)
		}
		if n < w.relay.BatchSize() {
			return
		}
	}
}
