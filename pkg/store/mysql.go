package store

import (
	"context"

	_ "github.com/go-sql-driver/mysql" // mysql driver
)

// OpenMySQL opens a mysql-backed store at dsn.
func OpenMySQL(ctx context.Context, dsn string) (*SQLStore, error) {
	return Open(ctx, "mysql", dsn)
}
