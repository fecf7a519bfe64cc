// Package migrations applies the embedded ledger and analytics schemas.
// Each backend records the files it has applied in a schema_migrations
// table, so a file runs once per database and new files run in name order.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

//go:embed postgres/*.sql clickhouse/*.sql
var files embed.FS

// backend applies and records migration files on one database.
type backend interface {
	name() string
	prepare(ctx context.Context) error
	applied(ctx context.Context) (map[string]bool, error)
	apply(ctx context.Context, version, body string) error
}

// pending returns the .sql files under dir not yet in done, in name order.
func pending(dir string, done map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") || done[e.Name()] {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// run brings b up to date with the files under dir and returns how many it applied.
func run(ctx context.Context, b backend, dir string, log logrus.FieldLogger) (int, error) {
	if err := b.prepare(ctx); err != nil {
		return 0, fmt.Errorf("%s: prepare migrations table: %w", b.name(), err)
	}
	done, err := b.applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: read applied migrations: %w", b.name(), err)
	}
	todo, err := pending(dir, done)
	if err != nil {
		return 0, err
	}

	for _, version := range todo {
		body, err := fs.ReadFile(files, path.Join(dir, version))
		if err != nil {
			return 0, fmt.Errorf("read migration %s: %w", version, err)
		}
		if err := b.apply(ctx, version, string(body)); err != nil {
			return 0, fmt.Errorf("%s: apply %s: %w", b.name(), version, err)
		}
		log.WithFields(logrus.Fields{"backend": b.name(), "version": version}).Info("applied migration")
	}
	return len(todo), nil
}
