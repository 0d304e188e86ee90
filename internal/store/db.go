package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolLimits sizes the connection pool. Non-positive fields take defaults
// sized for a read-mostly API.
type PoolLimits struct {
	MaxOpenConns int
	MaxIdleConns int
}

func (l PoolLimits) withDefaults() PoolLimits {
	if l.MaxOpenConns <= 0 {
		l.MaxOpenConns = 20
	}
	if l.MaxIdleConns <= 0 {
		l.MaxIdleConns = 10
	}
	return l
}

// Open connects to Postgres and verifies the connection before returning.
func Open(ctx context.Context, databaseURL string, limits PoolLimits) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	limits = limits.withDefaults()
	db.SetMaxOpenConns(limits.MaxOpenConns)
	db.SetMaxIdleConns(limits.MaxIdleConns)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
