// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	connectAttempts = 5
	retryBaseDelay  = 500 * time.Millisecond
	retryMaxDelay   = 5 * time.Second
)

// NewPool creates and validates a pgxpool connection pool.
// It retries with exponential backoff to accommodate containers starting up.
func NewPool(ctx context.Context, databaseURL string, log *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; ; attempt++ {
		pool, err = connect(ctx, poolCfg)
		if err == nil {
			break
		}
		if attempt >= connectAttempts {
			return nil, fmt.Errorf("connect to postgres after %d attempts: %w", attempt, err)
		}
		delay := backoff(attempt)
		log.Warn("database connect attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", connectAttempts),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to postgres canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return pool, nil
}

func connect(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func backoff(attempt int) time.Duration {
	d := retryBaseDelay << (attempt - 1)
	if d > retryMaxDelay {
		return retryMaxDelay
	}
	return d
}
