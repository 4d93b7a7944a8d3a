package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"metadata-ingestion/internal/common/errors"
	"metadata-ingestion/internal/common/logging"
)

// Scheduler repeats the workflow on a cron schedule. A tick that fires while
// the previous run is still going is skipped.
type Scheduler struct {
	app      *App
	schedule cron.Schedule
	logger   cron.Logger
	run      func(ctx context.Context) error
}

// NewScheduler parses spec, a standard five-field cron expression or descriptor
func NewScheduler(app *App, spec string) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid schedule %q: %v", spec, err))
	}
	return &Scheduler{
		app:      app,
		schedule: schedule,
		logger:   cronLogger{logger: app.Logger.WithFields(logging.String("component", "scheduler"))},
		run: func(ctx context.Context) error {
			_, err := app.RunWorkflow(ctx)
			return err
		},
	}, nil
}

// Next returns the first activation after t
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run blocks until ctx is done, running the workflow at every tick
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithLogger(s.logger))
	c.Schedule(s.schedule, s.job(ctx))
	c.Start()
	s.app.Logger.Info("Scheduler started", logging.String("next", s.Next(time.Now()).Format(time.RFC3339)))

	<-ctx.Done()
	<-c.Stop().Done()
	s.app.Logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) job(ctx context.Context) cron.Job {
	return cron.NewChain(cron.SkipIfStillRunning(s.logger)).Then(cron.FuncJob(func() {
		if err := s.run(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
			s.app.Logger.Warn("Scheduled run failed", logging.Err(err))
		}
	}))
}

// cronLogger feeds cron's key/value logging into the ingestion logger
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, err, kvFields(keysAndValues)...)
}

func kvFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
