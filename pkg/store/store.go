// Package store implements nimmy's pluggable persistence layer:
// breakpoints and run history, keyed by a SHA-256 hash of the source
// text, backed by an embedder's existing infrastructure — sqlite by
// default, or postgres/mysql/mongo, optionally fronted by a redis
// breakpoint cache.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/treeform/nimmy/pkg/vm"
)

// schema is the shared SQL schema across every database/sql-backed
// store (sqlite, postgres, mysql differ only in placeholder syntax and
// a couple of column-type spellings, handled by dialect below).
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS nimmy_breakpoints (
	source_hash %s NOT NULL,
	line        INTEGER NOT NULL,
	PRIMARY KEY (source_hash, line)
);
CREATE TABLE IF NOT EXISTS nimmy_runs (
	id          %s,
	source_hash %s NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	output      TEXT,
	error       TEXT
);
`

// dialect captures the handful of syntax differences between the three
// database/sql drivers nimmy supports.
type dialect struct {
	name           string
	placeholder    func(n int) string // returns the Nth bind placeholder, 1-based
	textType       string
	autoIncPrimary string
}

func (d dialect) schema() string {
	return fmt.Sprintf(schemaTemplate, d.textType, d.autoIncPrimary, d.textType)
}

var sqliteDialect = dialect{
	name:           "sqlite",
	placeholder:    func(n int) string { return "?" },
	textType:       "TEXT",
	autoIncPrimary: "INTEGER PRIMARY KEY AUTOINCREMENT",
}

var postgresDialect = dialect{
	name:           "postgres",
	placeholder:    func(n int) string { return fmt.Sprintf("$%d", n) },
	textType:       "TEXT",
	autoIncPrimary: "SERIAL PRIMARY KEY",
}

var mysqlDialect = dialect{
	name:           "mysql",
	placeholder:    func(n int) string { return "?" },
	textType:       "VARCHAR(64)",
	autoIncPrimary: "INTEGER PRIMARY KEY AUTO_INCREMENT",
}

// SQLStore is a database/sql-backed implementation of vm.Store shared
// by the sqlite, postgres, and mysql backends; only connection set-up
// and the dialect differ between them.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

// Open connects to driverName at dsn and ensures the nimmy schema
// exists. driverName must be one of "sqlite", "postgres" (lib/pq), or
// "mysql" (go-sql-driver/mysql).
func Open(ctx context.Context, driverName, dsn string) (*SQLStore, error) {
	var d dialect
	var sqlDriver string
	switch driverName {
	case "sqlite":
		d, sqlDriver = sqliteDialect, "sqlite"
		if dsn == "" {
			dsn = ":memory:"
		}
	case "postgres":
		d, sqlDriver = postgresDialect, "postgres"
	case "mysql":
		d, sqlDriver = mysqlDialect, "mysql"
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driverName)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", driverName, err)
	}
	if driverName == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pinging %s: %w", driverName, err)
	}
	if _, err := db.ExecContext(ctx, d.schema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrating schema: %w", err)
	}
	return &SQLStore{db: db, d: d}, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error { return s.db.Close() }

// LoadBreakpoints satisfies vm.Store.
func (s *SQLStore) LoadBreakpoints(sourceHash string) ([]int, error) {
	rows, err := s.db.Query(
		fmt.Sprintf("SELECT line FROM nimmy_breakpoints WHERE source_hash = %s", s.d.placeholder(1)),
		sourceHash,
	)
	if err != nil {
		return nil, fmt.Errorf("store: loading breakpoints: %w", err)
	}
	defer rows.Close()
	var lines []int
	for rows.Next() {
		var line int
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// SaveBreakpoints satisfies vm.Store, replacing the full breakpoint set
// for sourceHash.
func (s *SQLStore) SaveBreakpoints(sourceHash string, lines []int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: saving breakpoints: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		fmt.Sprintf("DELETE FROM nimmy_breakpoints WHERE source_hash = %s", s.d.placeholder(1)),
		sourceHash,
	); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := tx.Exec(
			fmt.Sprintf("INSERT INTO nimmy_breakpoints (source_hash, line) VALUES (%s, %s)",
				s.d.placeholder(1), s.d.placeholder(2)),
			sourceHash, line,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecordRun satisfies vm.Store.
func (s *SQLStore) RecordRun(rec vm.RunRecord) error {
	_, err := s.db.Exec(
		fmt.Sprintf(
			"INSERT INTO nimmy_runs (source_hash, started_at, finished_at, output, error) VALUES (%s, %s, %s, %s, %s)",
			s.d.placeholder(1), s.d.placeholder(2), s.d.placeholder(3), s.d.placeholder(4), s.d.placeholder(5),
		),
		rec.SourceHash, rec.Started, rec.Finished, rec.Output, rec.Err,
	)
	if err != nil {
		return fmt.Errorf("store: recording run: %w", err)
	}
	return nil
}

// RunHistory returns up to limit recorded runs for sourceHash, most
// recent first, for a host to render (e.g. a "past runs" debug console view).
func (s *SQLStore) RunHistory(sourceHash string, limit int) ([]vm.RunRecord, error) {
	rows, err := s.db.Query(
		fmt.Sprintf(
			"SELECT source_hash, started_at, finished_at, output, error FROM nimmy_runs WHERE source_hash = %s ORDER BY started_at DESC LIMIT %s",
			s.d.placeholder(1), s.d.placeholder(2),
		),
		sourceHash, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: loading run history: %w", err)
	}
	defer rows.Close()
	var out []vm.RunRecord
	for rows.Next() {
		var rec vm.RunRecord
		var started, finished time.Time
		if err := rows.Scan(&rec.SourceHash, &started, &finished, &rec.Output, &rec.Err); err != nil {
			return nil, err
		}
		rec.Started, rec.Finished = started, finished
		out = append(out, rec)
	}
	return out, rows.Err()
}
