package queue

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"

	"github.com/inbo/vespa-db-sub000/internal/config"
	exportModel "github.com/inbo/vespa-db-sub000/internal/domains/export/model"
	obsModel "github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	"github.com/inbo/vespa-db-sub000/internal/shared"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	cfg       *config.Config
}

func NewScheduler(cfg *config.Config) *Scheduler {
	scheduler := asynq.NewScheduler(
		RedisOpt(cfg.Redis),
		&asynq.SchedulerOpts{
			Location: cfg.Location(),
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		cfg:       cfg,
	}
}

// RegisterJobs registers every periodic task.
func (s *Scheduler) RegisterJobs() error {
	if err := s.registerSyncObservationsJob(); err != nil {
		return err
	}

	if err := s.registerExpireReservationsJob(); err != nil {
		return err
	}

	if err := s.registerAuditReservationCountsJob(); err != nil {
		return err
	}

	if s.cfg.Cache.PrewarmEnabled {
		if err := s.registerPrewarmJobs(); err != nil {
			return err
		}
	}

	if err := s.registerCleanupExportsJob(); err != nil {
		return err
	}

	return nil
}

// ================================================
// JOB 1: Sync observations from waarnemingen.be
// ================================================
// Unique keeps a slow run from overlapping with the next tick.
func (s *Scheduler) registerSyncObservationsJob() error {
	return s.register(
		"SyncObservations",
		s.cfg.Sync.Cron,
		shared.TypeSyncObservations,
		obsModel.SyncObservationsPayload{},
		asynq.Queue(shared.QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Unique(time.Hour),
	)
}

// ================================================
// JOB 2: Expire reservations (daily)
// ================================================
func (s *Scheduler) registerExpireReservationsJob() error {
	return s.register(
		"ExpireReservations",
		s.cfg.Reservation.SweepCron,
		shared.TypeExpireReservations,
		obsModel.ExpireReservationsPayload{},
		asynq.Queue(shared.QueueDefault),
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
	)
}

// ================================================
// JOB 3: Audit reservation counters (daily, after the sweep)
// ================================================
func (s *Scheduler) registerAuditReservationCountsJob() error {
	return s.register(
		"AuditReservationCounts",
		s.cfg.Reservation.AuditCron,
		shared.TypeAuditReservationCounts,
		obsModel.AuditReservationCountsPayload{},
		asynq.Queue(shared.QueueDefault),
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
	)
}

// ================================================
// JOB 4: Pre-warm GeoJSON caches (staggered every 15 minutes)
// ================================================
func (s *Scheduler) registerPrewarmJobs() error {
	for _, pc := range obsModel.DefaultPrewarmConfigs(s.cfg.Cache.PrewarmMinObserved) {
		err := s.register(
			"PrewarmGeoJSON:"+pc.Name,
			pc.Cadence,
			shared.TypeGenerateGeoJSON,
			obsModel.GenerateGeoJSONPayload{Name: pc.Name, Params: pc.Params},
			asynq.Queue(shared.QueueLow),
			asynq.MaxRetry(1),
			asynq.Timeout(2*time.Minute),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ================================================
// JOB 5: Cleanup old exports (daily)
// ================================================
func (s *Scheduler) registerCleanupExportsJob() error {
	return s.register(
		"CleanupExports",
		s.cfg.Export.CleanupCron,
		shared.TypeCleanupExports,
		exportModel.CleanupExportsPayload{OlderThanDays: s.cfg.Export.RetentionDays},
		asynq.Queue(shared.QueueLow),
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
	)
}

func (s *Scheduler) register(name, cronspec, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", name, err)
	}

	if _, err := s.scheduler.Register(cronspec, asynq.NewTask(taskType, data), opts...); err != nil {
		logger.Error("Failed to register "+name+" job", err)
		return err
	}

	logger.Info("✓ Registered "+name, map[string]interface{}{
		"cron": cronspec,
		"type": taskType,
	})
	return nil
}

// Start begins enqueuing on schedule without blocking.
func (s *Scheduler) Start() error {
	return s.scheduler.Start()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
