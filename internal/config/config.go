package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/robfig/cron/v3"
)

// Config holds the whole application configuration, populated from
// environment variables.
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Feed        FeedConfig
	Sync        SyncConfig
	Reservation ReservationConfig
	Cache       CacheConfig
	MinIO       MinIOConfig
	Export      ExportConfig
	Worker      WorkerConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
	Timezone    string // civil timezone of the upstream feed
	// Empty allows any origin.
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

// FeedConfig configures the waarnemingen.be client.
type FeedConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	PageSize     int
	Timeout      time.Duration
	// Requests per second against the upstream API.
	RateLimit float64
	// Consecutive failures before the circuit opens.
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

type SyncConfig struct {
	Cron                string
	WindowWeeks         int
	BatchSize           int
	EradicationKeywords []string
	SyncUsername        string
}

type ReservationConfig struct {
	DurationDays int
	MaxPerUser   int
	SweepCron    string
	AuditCron    string
}

type CacheConfig struct {
	GeoJSONTTL         time.Duration
	LockTTL            time.Duration
	PrewarmMinObserved string // yyyy-mm-dd lower bound used by every pre-warm query
	PrewarmEnabled     bool
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type ExportConfig struct {
	RetentionDays int
	MaxAttempts   int
	QueryTimeout  time.Duration
	CleanupCron   string
	PresignExpiry time.Duration
}

type WorkerConfig struct {
	Concurrency int
	HealthAddr  string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "vespa-db"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Timezone:    getEnv("APP_TIMEZONE", "Europe/Brussels"),
			CORSOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "vespadb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		},
		Feed: FeedConfig{
			BaseURL:          getEnv("WN_API_URL", "https://waarnemingen.be/api/v1"),
			TokenURL:         getEnv("WN_AUTH_URL", "https://waarnemingen.be/api/v1/oauth2/token/"),
			ClientID:         getEnv("WN_CLIENT_ID", ""),
			ClientSecret:     getEnv("WN_CLIENT_SECRET", ""),
			Username:         getEnv("WN_EMAIL", ""),
			Password:         getEnv("WN_PASSWORD", ""),
			PageSize:         getEnvInt("WN_PAGE_SIZE", 100),
			Timeout:          getEnvDuration("WN_TIMEOUT", 10*time.Second),
			RateLimit:        getEnvFloat("WN_RATE_LIMIT", 5),
			BreakerThreshold: uint32(getEnvInt("WN_BREAKER_THRESHOLD", 5)),
			BreakerTimeout:   getEnvDuration("WN_BREAKER_TIMEOUT", time.Minute),
		},
		Sync: SyncConfig{
			Cron:                getEnv("SYNC_CRON", "0 */2 * * *"),
			WindowWeeks:         getEnvInt("SYNC_WINDOW_WEEKS", 2),
			BatchSize:           getEnvInt("SYNC_BATCH_SIZE", 500),
			EradicationKeywords: getEnvList("ERADICATION_KEYWORDS", []string{"BESTREDEN"}),
			SyncUsername:        getEnv("SYNC_USERNAME", "sync"),
		},
		Reservation: ReservationConfig{
			DurationDays: getEnvInt("RESERVATION_DURATION_DAYS", 5),
			MaxPerUser:   getEnvInt("MAX_RESERVATIONS", 50),
			SweepCron:    getEnv("RESERVATION_SWEEP_CRON", "0 1 * * *"),
			AuditCron:    getEnv("RESERVATION_AUDIT_CRON", "30 1 * * *"),
		},
		Cache: CacheConfig{
			GeoJSONTTL:         getEnvDuration("GEOJSON_CACHE_TTL", 15*time.Minute),
			LockTTL:            getEnvDuration("GEOJSON_REBUILD_LOCK_TTL", 5*time.Minute),
			PrewarmMinObserved: getEnv("PREWARM_MIN_OBSERVATION_DATE", "2024-04-01"),
			PrewarmEnabled:     getEnvBool("PREWARM_ENABLED", true),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "vespadb-exports"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Export: ExportConfig{
			RetentionDays: getEnvInt("EXPORT_RETENTION_DAYS", 7),
			MaxAttempts:   getEnvInt("EXPORT_MAX_ATTEMPTS", 3),
			QueryTimeout:  getEnvDuration("EXPORT_QUERY_TIMEOUT", 5*time.Minute),
			CleanupCron:   getEnv("EXPORT_CLEANUP_CRON", "0 3 * * *"),
			PresignExpiry: getEnvDuration("EXPORT_PRESIGN_EXPIRY", time.Hour),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 10),
			HealthAddr:  getEnv("WORKER_HEALTH_ADDR", ":9999"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks value ranges, cron expressions and production secrets.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Feed,
		validation.Field(&c.Feed.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Feed.TokenURL, validation.Required, is.URL),
		validation.Field(&c.Feed.PageSize, validation.Required, validation.Min(1), validation.Max(1000)),
		validation.Field(&c.Feed.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Feed.RateLimit, validation.Required, validation.Min(0.1)),
	); err != nil {
		return fmt.Errorf("feed: %w", err)
	}

	if err := validation.ValidateStruct(&c.Sync,
		validation.Field(&c.Sync.Cron, validation.Required, validation.By(cronExpression)),
		validation.Field(&c.Sync.WindowWeeks, validation.Required, validation.Min(1)),
		validation.Field(&c.Sync.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Sync.SyncUsername, validation.Required),
	); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if err := validation.ValidateStruct(&c.Reservation,
		validation.Field(&c.Reservation.DurationDays, validation.Required, validation.Min(1)),
		validation.Field(&c.Reservation.MaxPerUser, validation.Required, validation.Min(1)),
		validation.Field(&c.Reservation.SweepCron, validation.Required, validation.By(cronExpression)),
		validation.Field(&c.Reservation.AuditCron, validation.Required, validation.By(cronExpression)),
	); err != nil {
		return fmt.Errorf("reservation: %w", err)
	}

	if err := validation.ValidateStruct(&c.Cache,
		validation.Field(&c.Cache.GeoJSONTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.Cache.LockTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Cache.PrewarmMinObserved, validation.Required, validation.Date("2006-01-02")),
	); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	if err := validation.ValidateStruct(&c.Export,
		validation.Field(&c.Export.RetentionDays, validation.Required, validation.Min(1)),
		validation.Field(&c.Export.MaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.Export.CleanupCron, validation.Required, validation.By(cronExpression)),
	); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE: %w", err)
	}

	if c.App.Environment == "production" {
		if c.JWT.Secret == "your-secret-key-change-in-production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
		if c.Feed.ClientID == "" || c.Feed.Username == "" {
			return fmt.Errorf("WN_CLIENT_ID and WN_EMAIL must be set in production")
		}
	}

	return nil
}

func cronExpression(value interface{}) error {
	spec, _ := value.(string)
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// Location returns the civil timezone used to interpret naive timestamps.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
