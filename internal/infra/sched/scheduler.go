package sched

import (
	"context"
	"fmt"
	"time"

	"signals-platform/internal/infra/logging"
	"signals-platform/internal/infra/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron specs. A job never overlaps with itself.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	log     *zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler builds a scheduler whose job runs are bounded by timeout (30s when <= 0).
func NewScheduler(timeout time.Duration, logger *zerolog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Silent()
	}
	compLog := logger.With().Str("component", "Scheduler").Logger()
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{&compLog}), cron.SkipIfStillRunning(cronLogger{&compLog}))),
		timeout: timeout,
		log:     &compLog,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under name on a standard five-field cron spec.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.log.Info().Str("job", name).Str("spec", spec).Msg("job scheduled")
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	metrics.IncJobRun(name, err)
	if err != nil {
		s.log.Error().Err(err).Str("job", name).Dur("duration", time.Since(start)).Msg("job failed")
		return
	}
	s.log.Debug().Str("job", name).Dur("duration", time.Since(start)).Msg("job finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop cancels running jobs and waits for them to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
	s.log.Info().Msg("scheduler stopped")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
