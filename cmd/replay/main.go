// Package main re-delivers the committed ledger event log: it rebuilds the
// ClickHouse distribution history and, with -republish, sends events to the
// broker again. Projection is idempotent; broker consumers deduplicate on the
// event id.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"revenue-market/internal/config"
	"revenue-market/internal/events"
	"revenue-market/internal/ledger"
	"revenue-market/internal/logging"
	"revenue-market/internal/replay"
	chstore "revenue-market/internal/storage/clickhouse"
	"revenue-market/internal/storage/migrations"
	pgstore "revenue-market/internal/storage/postgres"
)

type options struct {
	after     uint64
	pageSize  int
	republish bool
}

func main() {
	var opts options
	cfg, err := config.ParseWith("replay", os.Args[1:], func(fl *flag.FlagSet) {
		fl.Uint64Var(&opts.after, "after", 0, "Replay events with a sequence greater than this")
		fl.IntVar(&opts.pageSize, "page-size", replay.DefaultPageSize, "Events loaded per read")
		fl.BoolVar(&opts.republish, "republish", false, "Publish replayed events to the AMQP exchange")
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if cfg.UseMemory {
		fmt.Fprintln(os.Stderr, "replay needs a PostgreSQL ledger; -use-memory has no event log")
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.WithError(err).Fatal("replay failed")
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, log *logrus.Logger) error {
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := pgstore.NewStore(pool)

	// Token supply for projected rows comes from the ledger itself.
	l, err := ledger.New(ledger.Options{Store: store, TreasuryID: cfg.TreasuryID, Logger: log})
	if err != nil {
		return err
	}
	defer l.Close()

	fanout := events.NewFanout(log)
	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, log)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		defer conn.Close()
		fanout.Add("history", events.NewProjector(chstore.NewDistributionStore(conn), l))
	}
	if opts.republish {
		if cfg.AMQPURL == "" {
			return errors.New("-republish needs an AMQP url")
		}
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
		defer pub.Close()
		fanout.Add("amqp", pub)
	}
	if fanout.Len() == 0 {
		return errors.New("nothing to replay into: configure a ClickHouse dsn or -republish")
	}

	last, err := replay.NewRunner(store, opts.pageSize, log).Run(ctx, opts.after, fanout)
	if err != nil {
		return fmt.Errorf("replay stopped after seq %d: %w", last, err)
	}
	return nil
}
