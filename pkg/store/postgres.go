package store

import (
	"context"

	_ "github.com/lib/pq" // postgres driver
)

// OpenPostgres opens a postgres-backed store at dsn, for embedders that
// already run a Postgres instance and want breakpoints/run-history
// alongside their other application data.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	return Open(ctx, "postgres", dsn)
}
