package container

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/inbo/vespa-db-sub000/internal/config"
	infraCache "github.com/inbo/vespa-db-sub000/internal/infrastructure/cache"
	"github.com/inbo/vespa-db-sub000/internal/infrastructure/database"
	"github.com/inbo/vespa-db-sub000/internal/infrastructure/queue"
	"github.com/inbo/vespa-db-sub000/internal/infrastructure/storage"
	"github.com/inbo/vespa-db-sub000/pkg/cache"
	txdb "github.com/inbo/vespa-db-sub000/pkg/database"
	"github.com/inbo/vespa-db-sub000/pkg/jwt"
	"github.com/inbo/vespa-db-sub000/pkg/logger"

	exportHandler "github.com/inbo/vespa-db-sub000/internal/domains/export/handler"
	exportRepo "github.com/inbo/vespa-db-sub000/internal/domains/export/repository"
	exportService "github.com/inbo/vespa-db-sub000/internal/domains/export/service"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/feed"
	obsHandler "github.com/inbo/vespa-db-sub000/internal/domains/observation/handler"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/mapper"
	obsRepo "github.com/inbo/vespa-db-sub000/internal/domains/observation/repository"
	obsService "github.com/inbo/vespa-db-sub000/internal/domains/observation/service"
	regionRepo "github.com/inbo/vespa-db-sub000/internal/domains/region/repository"
	regionService "github.com/inbo/vespa-db-sub000/internal/domains/region/service"
	userHandler "github.com/inbo/vespa-db-sub000/internal/domains/user/handler"
	userRepo "github.com/inbo/vespa-db-sub000/internal/domains/user/repository"
	userService "github.com/inbo/vespa-db-sub000/internal/domains/user/service"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container holds every long lived dependency. It is the root of the
// dependency graph for the API, the worker and the CLI.
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================
	Config      *config.Config
	Location    *time.Location
	DB          *database.PostgresDB
	Redis       *infraCache.RedisClient
	Cache       cache.Cache
	JWTManager  *jwt.Manager
	AsynqClient *asynq.Client
	Storage     *storage.MinIOStorage
	TxRunner    txdb.TxRunner

	// ========================================
	// REPOSITORY LAYER (DATA ACCESS)
	// ========================================
	ObservationRepo obsRepo.ObservationRepository
	UserRepo        userRepo.UserRepository
	RegionRepo      regionRepo.RepositoryInterface
	ExportRepo      exportRepo.ExportRepository

	// Reference polygons, loaded once at startup
	Locator    *regionService.Locator
	FeedClient feed.Client

	// ========================================
	// SERVICE LAYER (BUSINESS LOGIC)
	// ========================================
	SyncService        obsService.SyncService
	GeoJSONService     obsService.GeoJSONService
	ObservationService obsService.ObservationService
	ExportService      exportService.ExportService
	UserService        userService.UserService

	// ========================================
	// HANDLER LAYER (HTTP)
	// ========================================
	ObservationHandler *obsHandler.ObservationHandler
	AdminHandler       *obsHandler.AdminHandler
	ExportHandler      *exportHandler.ExportHandler
	UserHandler        *userHandler.UserHandler
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer builds the whole graph in dependency order:
// config, infrastructure, repositories, services, handlers.
func NewContainer() (*Container, error) {
	logger.Info("🔧 Initializing DI Container...", nil)

	c := &Container{}

	// ========================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	c.Location = cfg.Location()
	logger.Info("✅ Config loaded", map[string]interface{}{"environment": cfg.App.Environment})

	// ========================================
	// STEP 2: INITIALIZE DATABASE
	// ========================================
	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	c.DB = db
	c.TxRunner = txdb.NewTxRunner(db.Pool)
	logger.Info("✅ Database connected", nil)

	// ========================================
	// STEP 3: INITIALIZE REDIS, QUEUE, STORAGE
	// ========================================
	c.Redis = infraCache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err := c.Redis.Connect(ctx); err != nil {
		// Cache reads degrade to generation; the lock and the queue need Redis later.
		logger.Warn("⚠️  Redis connection failed (non-critical)", map[string]interface{}{"error": err.Error()})
	}
	c.Cache = infraCache.NewRedisCache(c.Redis)

	c.AsynqClient = queue.NewClient(cfg.Redis)

	c.Storage, err = storage.NewMinIOStorage(ctx, cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("failed to init object storage: %w", err)
	}

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret)

	// ========================================
	// STEP 4: REPOSITORIES AND REFERENCE DATA
	// ========================================
	c.initRepositories()

	c.Locator, err = regionService.LoadLocator(ctx, c.RegionRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to load region polygons: %w", err)
	}

	c.FeedClient = feed.NewHTTPClient(cfg.Feed)

	// ========================================
	// STEP 5: SERVICES AND HANDLERS
	// ========================================
	c.initServices()
	c.initHandlers()

	logger.Info("🎉 DI Container initialized successfully", nil)
	return c, nil
}

func (c *Container) initRepositories() {
	pool := c.DB.Pool

	c.ObservationRepo = obsRepo.NewRepository(pool)
	c.UserRepo = userRepo.NewUserRepository(pool)
	c.RegionRepo = regionRepo.NewRepository(pool)
	c.ExportRepo = exportRepo.NewRepository(pool)
}

func (c *Container) initServices() {
	cfg := c.Config

	c.GeoJSONService = obsService.NewGeoJSONService(
		cfg.Cache,
		c.ObservationRepo,
		c.Cache,
		c.AsynqClient,
		c.Location,
	)

	c.SyncService = obsService.NewSyncService(
		cfg.Sync,
		c.FeedClient,
		mapper.New(c.Locator, c.Location, cfg.Sync.EradicationKeywords),
		c.ObservationRepo,
		c.UserRepo,
		c.TxRunner,
		c.GeoJSONService,
	)

	c.ObservationService = obsService.NewObservationService(
		cfg.Reservation,
		c.ObservationRepo,
		c.UserRepo,
		c.TxRunner,
		c.Locator,
		c.GeoJSONService,
		c.Cache,
		c.Location,
	)

	c.UserService = userService.NewUserService(c.UserRepo, cfg.Reservation, c.Location)

	c.ExportService = exportService.NewExportService(
		cfg.Export,
		c.ExportRepo,
		c.Storage,
		c.AsynqClient,
		c.Location,
	)
}

func (c *Container) initHandlers() {
	c.ObservationHandler = obsHandler.NewObservationHandler(c.ObservationService, c.GeoJSONService)
	c.AdminHandler = obsHandler.NewAdminHandler(c.AsynqClient)
	c.ExportHandler = exportHandler.NewExportHandler(c.ExportService)
	c.UserHandler = userHandler.NewUserHandler(c.UserService)
}

// Cleanup releases pooled connections. Safe to call on a partly built container.
func (c *Container) Cleanup() {
	logger.Info("🧹 Cleaning up container resources...", nil)

	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			logger.Error("Failed to close task queue client", err)
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Error("Failed to close Redis", err)
		}
	}

	if c.DB != nil {
		_ = c.DB.Close()
	}

	logger.Info("✅ Container cleanup completed", nil)
}
