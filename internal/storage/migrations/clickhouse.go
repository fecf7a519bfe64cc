package migrations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	chstore "revenue-market/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the distribution history database named in
// dsn if needed, applies new schema files and returns a connection to it.
func RunClickhouseMigrations(ctx context.Context, dsn string, log logrus.FieldLogger) (*chstore.Conn, error) {
	db, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := createDatabase(ctx, dsn, db); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, db)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse %s: %w", db, err)
	}
	if _, err := run(ctx, &clickhouseBackend{conn: conn}, "clickhouse", log); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func createDatabase(ctx context.Context, dsn, db string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+quoteIdent(db)); err != nil {
		return fmt.Errorf("create database %s: %w", db, err)
	}
	return nil
}

type clickhouseBackend struct {
	conn *chstore.Conn
}

func (b *clickhouseBackend) name() string { return "clickhouse" }

func (b *clickhouseBackend) prepare(ctx context.Context) error {
	return b.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    String,
			applied_at DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree()
		ORDER BY version`)
}

func (b *clickhouseBackend) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := b.conn.Query(ctx, `SELECT DISTINCT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

// apply runs each statement of body, then records version. ClickHouse has no
// DDL transactions, so schema files must stay idempotent.
func (b *clickhouseBackend) apply(ctx context.Context, version, body string) error {
	stmts, err := splitStatements(body)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := b.conn.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return b.conn.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version)
}

// splitStatements cuts body at top-level semicolons. Semicolons inside quoted
// strings, quoted identifiers and -- or /* */ comments do not split; comments
// are dropped. The driver executes one statement per call.
func splitStatements(body string) ([]string, error) {
	var (
		stmts []string
		cur   strings.Builder
		quote byte
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			switch {
			case c == '\\' && i+1 < len(body):
				i++
				cur.WriteByte(body[i])
			case c == quote && i+1 < len(body) && body[i+1] == quote:
				i++
				cur.WriteByte(body[i])
			case c == quote:
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			cur.WriteByte(c)
		case c == '-' && strings.HasPrefix(body[i:], "--"):
			end := strings.IndexByte(body[i:], '\n')
			if end < 0 {
				i = len(body)
			} else {
				i += end
				cur.WriteByte('\n')
			}
		case c == '/' && strings.HasPrefix(body[i:], "/*"):
			end := strings.Index(body[i+2:], "*/")
			if end < 0 {
				return nil, errors.New("unterminated block comment")
			}
			i += end + 3
			cur.WriteByte(' ')
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	flush()
	return stmts, nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", errors.New("clickhouse dsn names no database")
	}
	return db, nil
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
