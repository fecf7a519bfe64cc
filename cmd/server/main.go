// Package main runs the marketplace ledger behind its HTTP API:
// - Ledger: PostgreSQL (or in-memory) escrow and settlement state
// - Events: live WebSocket feed, optional RabbitMQ publishing
// - History: distribution projection into ClickHouse (or in-memory)
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"revenue-market/internal/address"
	"revenue-market/internal/api"
	"revenue-market/internal/config"
	"revenue-market/internal/events"
	"revenue-market/internal/ledger"
	"revenue-market/internal/logging"
	"revenue-market/internal/observability"
	"revenue-market/internal/storage"
	chstore "revenue-market/internal/storage/clickhouse"
	"revenue-market/internal/storage/memory"
	"revenue-market/internal/storage/migrations"
	pgstore "revenue-market/internal/storage/postgres"
)

func main() {
	cfg, err := config.Parse("server", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server failed")
	}
	logger.Info("shutdown complete")
}

// backend holds the storage implementations.
type backend struct {
	store   storage.Store
	history storage.DistributionHistoryStore
	checks  []func(ctx context.Context) error
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func (b *backend) health(ctx context.Context) error {
	for _, check := range b.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// openBackend connects to PostgreSQL and ClickHouse, running migrations, or
// falls back to in-memory stores.
func openBackend(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*backend, error) {
	b := &backend{}

	if cfg.UseMemory {
		log.Warn("using in-memory ledger storage, state is lost on exit")
		b.store = memory.NewStore()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool, log); err != nil {
			b.close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		b.store = pgstore.NewStore(pool)
		b.checks = append(b.checks, pool.Healthy)
	}

	if cfg.ClickhouseDSN == "" {
		b.history = memory.NewDistributionStore()
		return b, nil
	}
	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, log)
	if err != nil {
		b.close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	b.closers = append(b.closers, func() { _ = conn.Close() })
	b.history = chstore.NewDistributionStore(conn)
	b.checks = append(b.checks, conn.Ping)
	return b, nil
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	fanout := events.NewFanout(log)

	feedCfg := events.DefaultFeedConfig()
	feedCfg.BufferSize = cfg.FeedBuffer
	feed := events.NewFeed(&feedCfg, log)
	defer feed.Close()
	fanout.Add("feed", feed)

	if cfg.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
		defer pub.Close()
		fanout.Add("amqp", pub)
	}

	requirement, err := cfg.Requirement()
	if err != nil {
		return err
	}
	params := cfg.Settlement()

	opts := ledger.Options{
		Store:       b.store,
		Params:      &params,
		Requirement: requirement,
		TreasuryID:  cfg.TreasuryID,
		Sink:        fanout,
		Logger:      log,
	}
	if cfg.ValidateAddresses {
		opts.ValidateActor = address.Validator(cfg.TreasuryID)
	}
	l, err := ledger.New(opts)
	if err != nil {
		return err
	}
	// Runs before the feed and broker close, delivering what is queued.
	defer l.Close()
	fanout.Add("history", events.NewProjector(b.history, l))

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Options{
			Ledger:  l,
			History: b.history,
			Feed:    feed,
			Health:  b.health,
			Logger:  log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go trackUptime(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":     cfg.HTTPAddr,
			"memory":   cfg.UseMemory,
			"treasury": cfg.TreasuryID,
			"fee_bps":  params.FeeBps,
			"sinks":    fanout.Len(),
		}).Info("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func trackUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.DefaultMetrics.UptimeSeconds.Add(10)
		}
	}
}
