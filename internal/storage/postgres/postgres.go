// Package postgres persists accounts, factions and player progression in
// PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/advancement/internal/config"
)

// sqlstate 23505.
const uniqueViolation = "23505"

// Pool owns the connections every repository shares.
type Pool struct {
	db *pgxpool.Pool
}

// PoolStats is a point-in-time view of connection use.
type PoolStats struct {
	Total    int32
	Idle     int32
	Acquired int32
	// Acquires counts every successful acquire since the pool opened.
	Acquires int64
}

// NewPool connects with cfg's limits and verifies the server answers.
//
// Precondition: cfg.DSN must name a reachable database.
// Postcondition: the returned Pool has answered one ping; on error nothing is left open.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database dsn: %w", err)
	}
	pcfg.MaxConns = cfg.MaxConns
	pcfg.MinConns = cfg.MinConns
	pcfg.MaxConnLifetime = cfg.MaxConnLifetime

	db, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("opening pool for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("reaching %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Pool{db: db}, nil
}

// Health pings within timeout and reports connection use either way.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) (PoolStats, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := p.db.Ping(ctx)
	return p.Stats(), err
}

// Stats reports current connection use.
func (p *Pool) Stats() PoolStats {
	s := p.db.Stat()
	return PoolStats{
		Total:    s.TotalConns(),
		Idle:     s.IdleConns(),
		Acquired: s.AcquiredConns(),
		Acquires: s.AcquireCount(),
	}
}

// Close waits for acquired connections to be released, then closes them all.
func (p *Pool) Close() {
	p.db.Close()
}

// DB returns the pgx pool for constructing repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.db
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
