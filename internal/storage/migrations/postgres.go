package migrations

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

// PostgresDB is the part of a pgx pool the ledger migrations use.
type PostgresDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RunPostgresMigrations applies the ledger schema files db has not seen yet.
func RunPostgresMigrations(ctx context.Context, db PostgresDB, log logrus.FieldLogger) error {
	_, err := run(ctx, &postgresBackend{db: db}, "postgres", log)
	return err
}

type postgresBackend struct {
	db PostgresDB
}

func (b *postgresBackend) name() string { return "postgres" }

func (b *postgresBackend) prepare(ctx context.Context) error {
	_, err := b.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (b *postgresBackend) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := b.db.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(versions))
	for _, v := range versions {
		done[v] = true
	}
	return done, nil
}

// apply runs body and records version in one transaction. A concurrent
// starter that already recorded version wins; this one rolls back cleanly.
func (b *postgresBackend) apply(ctx context.Context, version, body string) error {
	tx, err := b.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, body); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
