package matching

import (
	"context"
	"time"

	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
)

// sweepBatchSize bounds how many recently active users one sweep checks
const sweepBatchSize = 1000

type SchedulerConfig struct {
	SweepInterval   time.Duration
	SweepActiveDays int
}

type Scheduler struct {
	engine   *Engine
	detector *Detector
	repo     *Repository
	cfg      SchedulerConfig
	log      *logger.Logger
	now      func() time.Time
}

func NewScheduler(engine *Engine, detector *Detector, repo *Repository, cfg SchedulerConfig, log *logger.Logger) *Scheduler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}
	if cfg.SweepActiveDays <= 0 {
		cfg.SweepActiveDays = 7
	}
	return &Scheduler{engine: engine, detector: detector, repo: repo, cfg: cfg, log: log, now: time.Now}
}

func (s *Scheduler) Start(ctx context.Context) {
	// Cleanup expired recommendations daily at 2 AM
	go s.runDaily(ctx, 2, 0, "cleanup_recommendations", s.engine.CleanupExpired)

	// Mutual match sweep over recently active users
	go s.runEvery(ctx, s.cfg.SweepInterval, "mutual_match_sweep", s.SweepMutualMatches)
}

// SweepMutualMatches runs the batch detector over users active in the window
func (s *Scheduler) SweepMutualMatches(ctx context.Context) error {
	since := s.now().UTC().AddDate(0, 0, -s.cfg.SweepActiveDays)
	ids, err := s.repo.ActiveUserIDs(ctx, since, sweepBatchSize)
	if err != nil {
		return err
	}
	s.detector.BatchProcessMutualMatches(ctx, ids)
	return nil
}

func (s *Scheduler) runDaily(ctx context.Context, hour, minute int, name string, task func(context.Context) error) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if now.After(next) {
			next = next.Add(24 * time.Hour)
		}

		timer := time.NewTimer(next.Sub(now))

		select {
		case <-timer.C:
			s.run(ctx, name, task)
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) runEvery(ctx context.Context, interval time.Duration, name string, task func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.run(ctx, name, task)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, name string, task func(context.Context) error) {
	start := time.Now()
	if err := task(ctx); err != nil {
		s.log.Error("Scheduled task failed", "task", name, "error", err)
		return
	}
	RecordDuration(name, time.Since(start))
	s.log.Debug("Scheduled task finished", "task", name, "duration", time.Since(start))
}
