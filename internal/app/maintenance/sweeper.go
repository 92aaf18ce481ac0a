package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/syncroom-dev/syncroom/internal/collab"
	"github.com/syncroom-dev/syncroom/internal/services"
	"github.com/syncroom-dev/syncroom/pkg/logger"
)

const (
	defaultIdleGracePeriod  = 2 * time.Minute
	defaultSessionRetention = 30 * 24 * time.Hour
	defaultSweepSpec        = "@every 1m"
	defaultPurgeSpec        = "@daily"
)

// Sweeper runs background maintenance for the collaboration engine: idle
// connections are force-left on a short cadence, and long-closed session
// records are purged from the store.
type Sweeper struct {
	engine *collab.Engine
	store  *services.SessionStoreService
	cron   *cron.Cron
	now    func() time.Time
	log    *zap.Logger

	gracePeriod time.Duration
	retention   time.Duration
	sweepSpec   string
	purgeSpec   string
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIdleGracePeriod adjusts how long a silent connection may linger.
func WithIdleGracePeriod(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.gracePeriod = d
		}
	}
}

// WithSessionRetention adjusts how long closed session records are kept.
func WithSessionRetention(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSweepSchedule overrides the cron expression for the idle sweep.
func WithSweepSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.sweepSpec = spec
		}
	}
}

// WithPurgeSchedule overrides the cron expression for record purging.
func WithPurgeSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.purgeSpec = spec
		}
	}
}

// NewSweeper constructs a Sweeper with sensible defaults. A nil store skips
// the purge job.
func NewSweeper(engine *collab.Engine, store *services.SessionStoreService, opts ...Option) *Sweeper {
	sweeper := &Sweeper{
		engine:      engine,
		store:       store,
		now:         time.Now,
		gracePeriod: defaultIdleGracePeriod,
		retention:   defaultSessionRetention,
		sweepSpec:   defaultSweepSpec,
		purgeSpec:   defaultPurgeSpec,
		log:         logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(sweeper)
	}

	if sweeper.cron == nil {
		sweeper.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return sweeper
}

// Start registers the jobs with the cron scheduler and launches it.
func (s *Sweeper) Start() error {
	if s.engine != nil {
		if _, err := s.cron.AddFunc(s.sweepSpec, func() {
			if swept := s.engine.SweepIdle(s.gracePeriod); swept > 0 {
				s.log.Info("swept idle connections", zap.Int("count", swept))
			}
		}); err != nil {
			return err
		}
	}

	if s.store != nil && s.retention > 0 {
		if _, err := s.cron.AddFunc(s.purgeSpec, func() {
			ctx := context.Background()
			if _, err := s.store.PurgeClosedBefore(ctx, s.now().Add(-s.retention)); err != nil {
				s.log.Warn("session purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes all configured maintenance routines sequentially.
// Primarily used in tests and during graceful shutdown.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if s.engine != nil {
		s.engine.SweepIdle(s.gracePeriod)
	}

	if s.store != nil && s.retention > 0 {
		if _, err := s.store.PurgeClosedBefore(ctx, s.now().Add(-s.retention)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
