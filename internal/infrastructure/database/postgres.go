package database

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DBConfig groups the connection and pool parameters for PostgreSQL.
type DBConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DBName   string
	SSLMode  string

	// Pool sizing and connection lifecycle
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration

	// Retry
	MaxRetries     int
	RetryDelay     time.Duration
	ConnectTimeout time.Duration

	// StatementTimeout is set as the session statement_timeout of every
	// pooled connection. Zero disables it.
	StatementTimeout time.Duration
}

// PostgresDB owns the connection pool.
type PostgresDB struct {
	Pool   *pgxpool.Pool
	Config *DBConfig
}

func (db *PostgresDB) buildConnectionString() string {
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(db.Config.Username, db.Config.Password),
		Host:   fmt.Sprintf("%s:%d", db.Config.Host, db.Config.Port),
		Path:   db.Config.DBName,
	}
	if db.Config.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(db.Config.SSLMode)
	}
	return u.String()
}

func (db *PostgresDB) configurePool() (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(db.buildConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = db.Config.MaxConns
	config.MinConns = db.Config.MinConns
	config.MaxConnLifetime = db.Config.MaxConnLifetime
	config.MaxConnIdleTime = db.Config.MaxConnIdleTime
	config.HealthCheckPeriod = db.Config.HealthCheckPeriod
	config.ConnConfig.ConnectTimeout = db.Config.ConnectTimeout

	if db.Config.StatementTimeout > 0 {
		config.ConnConfig.RuntimeParams["statement_timeout"] =
			strconv.FormatInt(db.Config.StatementTimeout.Milliseconds(), 10)
	}

	return config, nil
}

// connectWithRetry retries pool creation with exponential backoff
// (delay = RetryDelay * 2^(attempt-1)).
func (db *PostgresDB) connectWithRetry(ctx context.Context, config *pgxpool.Config) (*pgxpool.Pool, error) {
	var lastErr error

	for attempt := 1; attempt <= db.Config.MaxRetries; attempt++ {
		log.Info().Msgf("[DATABASE] Connection attempt %d/%d", attempt, db.Config.MaxRetries)

		connectCtx, cancel := context.WithTimeout(ctx, db.Config.ConnectTimeout)
		pool, err := pgxpool.NewWithConfig(connectCtx, config)
		cancel()

		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr != nil {
				pool.Close()
				err = pingErr
			} else {
				log.Info().Msgf("[DATABASE] Connected on attempt %d", attempt)
				return pool, nil
			}
		}

		lastErr = err
		log.Warn().Err(err).Msgf("[DATABASE] Attempt %d failed", attempt)

		if attempt < db.Config.MaxRetries {
			delay := db.Config.RetryDelay * time.Duration(1<<uint(attempt-1))
			log.Info().Msgf("[DATABASE] Retrying in %v...", delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", db.Config.MaxRetries, lastErr)
}

// Connect configures the pool and connects with retry.
func (db *PostgresDB) Connect(ctx context.Context) error {
	log.Info().Msg("[DATABASE] Initializing PostgreSQL connection...")

	config, err := db.configurePool()
	if err != nil {
		return fmt.Errorf("pool configuration failed: %w", err)
	}

	pool, err := db.connectWithRetry(ctx, config)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	db.Pool = pool
	log.Info().Msg("[DATABASE] PostgreSQL connection established")
	return nil
}

// HealthCheck pings the database and verifies the pool holds connections.
func (db *PostgresDB) HealthCheck(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Pool.Ping(healthCtx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	stats := db.Pool.Stat()
	if stats.TotalConns() == 0 {
		return fmt.Errorf("no active database connections")
	}

	log.Debug().
		Int32("total", stats.TotalConns()).
		Int32("idle", stats.IdleConns()).
		Int32("acquired", stats.AcquiredConns()).
		Msg("[DATABASE] Health check passed")

	return nil
}

func NewPostgresDB(config *DBConfig) *PostgresDB {
	return &PostgresDB{Config: config}
}
