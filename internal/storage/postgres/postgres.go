package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// applicationName tags ledger sessions in pg_stat_activity unless the DSN sets one.
const applicationName = "revenue-market"

// Pool is the ledger's connection pool.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to dsn and waits for the database to answer.
// A positive maxConns overrides the pool size from the DSN.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Healthy reports an error unless the database answers and its ledger
// sequences are seeded, which is what every write needs.
func (p *Pool) Healthy(ctx context.Context) error {
	var seeded int
	if err := p.QueryRow(ctx, `SELECT count(*) FROM ledger_sequences`).Scan(&seeded); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if seeded == 0 {
		return errors.New("postgres: ledger sequences are not seeded")
	}
	return nil
}

// isDuplicateKeyError reports a unique_violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
