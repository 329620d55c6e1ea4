package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Ping checks the database is reachable within five seconds.
func (db *PostgresDB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close shuts the pool down. Safe to call more than once.
func (db *PostgresDB) Close() error {
	if db.Pool == nil {
		return nil
	}

	log.Info().Msg("[DATABASE] Closing database connection pool...")
	db.Pool.Close()
	db.Pool = nil
	log.Info().Msg("[DATABASE] Connection pool closed")
	return nil
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	AcquireCount         int64
	AcquireDuration      time.Duration
	AcquiredConns        int32
	CanceledAcquireCount int64
	EmptyAcquireCount    int64
	IdleConns            int32
	MaxConns             int32
	TotalConns           int32
}

func (db *PostgresDB) Stats() (*PoolStats, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	raw := db.Pool.Stat()
	return &PoolStats{
		AcquireCount:         raw.AcquireCount(),
		AcquireDuration:      raw.AcquireDuration(),
		AcquiredConns:        raw.AcquiredConns(),
		CanceledAcquireCount: raw.CanceledAcquireCount(),
		EmptyAcquireCount:    raw.EmptyAcquireCount(),
		IdleConns:            raw.IdleConns(),
		MaxConns:             raw.MaxConns(),
		TotalConns:           raw.TotalConns(),
	}, nil
}

func calculateAvgDuration(totalDuration time.Duration, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return totalDuration / time.Duration(count)
}

// MonitorPoolHealth logs warnings about pool saturation until ctx is done.
// Run it in its own goroutine.
func (db *PostgresDB) MonitorPoolHealth(ctx context.Context, interval time.Duration, observe func(*PoolStats)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := db.Stats()
			if err != nil {
				log.Warn().Err(err).Msg("[MONITOR] Failed to get stats")
				continue
			}
			if observe != nil {
				observe(stats)
			}

			if stats.MaxConns > 0 {
				utilization := float64(stats.AcquiredConns) / float64(stats.MaxConns) * 100
				if utilization > 80 {
					log.Warn().Msgf("[MONITOR] HIGH POOL UTILIZATION: %.1f%% (%d/%d)",
						utilization, stats.AcquiredConns, stats.MaxConns)
				}
			}

			if avg := calculateAvgDuration(stats.AcquireDuration, stats.AcquireCount); avg > 100*time.Millisecond {
				log.Warn().Msgf("[MONITOR] HIGH ACQUIRE LATENCY: %v", avg)
			}

		case <-ctx.Done():
			log.Info().Msg("[MONITOR] Stopping pool health monitoring")
			return
		}
	}
}
