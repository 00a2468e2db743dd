package orgsync

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
)

// ParseSchedule validates a standard five-field cron expression or a
// descriptor such as "@daily" or "@every 1h".
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.NewConfigError("schedule", fmt.Sprintf("invalid cron expression %q", spec), err)
	}
	return schedule, nil
}

// Schedule runs Sync on every tick of spec until ctx is done. A tick that
// arrives while a run is still going is skipped. Each run is bounded by the
// Syncer timeout, or constants.SyncTimeout when none is set.
func (s *Syncer) Schedule(ctx context.Context, spec string) error {
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return err
	}

	logger := logging.FromContext(ctx)
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(schedule, cron.FuncJob(func() {
		s.runScheduled(ctx)
	}))

	c.Start()
	logger.Info().Str("schedule", spec).Time("next", schedule.Next(s.options.now())).Msg("Scheduler started")

	<-ctx.Done()
	// Wait for a running sync to observe the cancellation.
	<-c.Stop().Done()
	logger.Info().Msg("Scheduler stopped")
	return nil
}

func (s *Syncer) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.options.timeout == 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, constants.SyncTimeout)
		defer cancel()
	}
	if _, err := s.Sync(ctx); err != nil {
		logging.FromContext(ctx).Error().Err(err).Msg("Scheduled sync failed")
	}
}

// cronLogger sends cron's own messages to zerolog.
type cronLogger struct {
	logger *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
