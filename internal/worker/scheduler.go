package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"cashflow/internal/log"
)

// Scheduler regenerates projections for a fixed set of currencies on a
// standard five-field cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	worker     *ForecastWorker
	currencies []string
	logger     *log.Logger
	ctx        context.Context
}

// NewScheduler parses schedule and registers the forecast job. Start must be
// called before the job fires.
func NewScheduler(w *ForecastWorker, schedule string, currencies []string, logger *log.Logger) (*Scheduler, error) {
	logger = logger.WithComponent(log.ComponentScheduler)
	cl := cronLogger{logger: logger}

	s := &Scheduler{
		cron: cron.New(cron.WithLogger(cl), cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		worker:     w,
		currencies: currencies,
		logger:     logger,
		ctx:        context.Background(),
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(s.ctx) }); err != nil {
		return nil, fmt.Errorf("invalid forecast schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the cron loop in the background. Jobs see ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.InfoContext(ctx, "Forecast schedule started",
			log.FieldOperation, log.OpSchedule,
			"next_run", e.Next,
			"currencies", s.currencies)
	}
}

// Stop halts the schedule and waits for a running job or ctx, whichever
// ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduled forecast still running at shutdown")
	}
}

// RunOnce regenerates every scheduled currency in order. Failures are
// logged and do not stop the remaining currencies. Returns the number of
// successful runs.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	ok := 0
	for _, currency := range s.currencies {
		if ctx.Err() != nil {
			break
		}
		if err := s.worker.Run(ctx, "sched_"+uuid.NewString(), currency); err == nil {
			ok++
		}
	}
	s.logger.InfoContext(ctx, "Scheduled forecast finished",
		log.FieldOperation, log.OpSchedule,
		"succeeded", ok,
		"total", len(s.currencies))
	return ok
}

// cronLogger adapts the structured logger to cron.Logger.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
