package store

import (
	"context"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, nimmy's default backend
)

// OpenSQLite opens the default embedded backend. path is a filesystem
// path, or "" for an in-memory database (the default for a fresh debug
// session with no persistence configured).
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	return Open(ctx, "sqlite", path)
}
