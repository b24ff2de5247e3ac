package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Pool sizing for a scan-station workload: short request-scoped queries,
// bursts while a line of students files past a scanner.
const (
	maxOpenConns = 15
	maxIdleConns = 5
)

// DB wraps the Postgres connection the repositories share.
type DB struct {
	Client *sql.DB
}

// NewDB opens the attendance database via the pgx stdlib driver and verifies
// connectivity before handing it out.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
