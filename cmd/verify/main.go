// Package main audits a persisted ledger: inventory, escrow and payment
// conservation per listing, custody and supply per token. It exits non-zero
// when any divergence is found.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"revenue-market/internal/config"
	"revenue-market/internal/logging"
	"revenue-market/internal/storage/migrations"
	pgstore "revenue-market/internal/storage/postgres"
	"revenue-market/internal/verification"
)

func main() {
	cfg, err := config.Parse("verify", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if cfg.UseMemory {
		fmt.Fprintln(os.Stderr, "verify needs a PostgreSQL ledger; -use-memory has nothing to audit")
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := run(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("verification failed")
	}
	if !report.OK() {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*verification.VerificationReport, error) {
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool, log); err != nil {
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	if err := pool.Healthy(ctx); err != nil {
		return nil, err
	}

	v := verification.NewLedgerVerifier(pgstore.NewStore(pool))
	report, err := v.VerifyAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, res := range report.Results {
		if res.Match {
			log.WithField("subject", res.Subject).Debug("verified")
			continue
		}
		for _, d := range res.Divergences {
			log.WithFields(logrus.Fields{
				"subject":  res.Subject,
				"field":    d.Field,
				"expected": d.Expected,
				"actual":   d.Actual,
			}).Error("divergence")
		}
	}

	log.WithFields(logrus.Fields{
		"total":     report.TotalSubjects,
		"matched":   report.MatchedSubjects,
		"divergent": report.DivergentSubjects,
	}).Info("verification complete")
	return report, nil
}
