package usecase

import (
	"billnotify/internal/domain"
	"billnotify/internal/ports"
	"billnotify/pkg/backoff"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Handler processes one claimed job and says what should happen to it.
type Handler func(ctx context.Context, j domain.Job) domain.Result

type Consumer struct {
	Q            ports.JobStore
	ConsumerName string
	Policy       backoff.Policy
	Block        time.Duration
	Now          func() time.Time

	// claim error backoff
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c Consumer) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Consumer) Run(ctx context.Context, handle Handler) error {
	base := c.BaseBackoff
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, err := c.ProcessOne(ctx, handle)
		if err == nil {
			failures = 0
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if failures < 10 {
			failures++
		}
		wait := backoff.ExponentialJitter(base, c.MaxBackoff, failures)
		log.Ctx(ctx).Error().Err(err).Str("consumer", c.ConsumerName).Dur("wait", wait).Msg("claim failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// ProcessOne claims at most one job, runs it and settles it. It reports
// whether a job was processed.
func (c Consumer) ProcessOne(ctx context.Context, handle Handler) (bool, error) {
	j, streamID, err := c.Q.Claim(ctx, c.ConsumerName, c.Block)
	if err != nil {
		return false, err
	}
	if j == nil {
		return false, nil
	}

	logger := log.Ctx(ctx).With().
		Str("job_id", j.ID).
		Str("task_id", j.Data.TaskID).
		Str("type", string(j.Data.Kind)).
		Int("attempt", j.Attempts+1).
		Logger()
	jctx := logger.WithContext(ctx)

	res := safeHandle(jctx, handle, *j)
	c.settle(jctx, &logger, streamID, *j, res)
	return true, nil
}

// safeHandle turns a handler panic into a retryable failure so the attempt cap
// still applies.
func safeHandle(ctx context.Context, handle Handler, j domain.Job) (res domain.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.Retry(fmt.Errorf("panic: %v", r))
		}
	}()
	return handle(ctx, j)
}

func (c Consumer) settle(ctx context.Context, logger *zerolog.Logger, streamID string, j domain.Job, res domain.Result) {
	var err error
	switch {
	case res.Succeeded():
		err = c.Q.Complete(ctx, streamID, j)
		if res.Outcome == domain.OutcomeSkipped {
			logger.Info().Str("reason", res.Reason).Msg("job skipped")
		} else {
			logger.Info().Msg("job completed")
		}

	case res.Outcome == domain.OutcomeRetry:
		policy := c.Policy
		if j.MaxAttempts > 0 {
			policy.MaxAttempts = j.MaxAttempts
		}
		delay, retry := policy.Next(j.Attempts + 1)
		if !retry {
			err = c.Q.Fail(ctx, streamID, j, res.Reason)
			logger.Error().Err(res.Err).Msg("job failed, attempts exhausted")
			break
		}
		err = c.Q.Retry(ctx, streamID, j, c.now().Add(delay), res.Reason)
		logger.Warn().Err(res.Err).Dur("delay", delay).Msg("job retry scheduled")

	default:
		err = c.Q.Fail(ctx, streamID, j, res.Reason)
		logger.Error().Err(res.Err).Msg("job failed")
	}

	if errors.Is(err, domain.ErrJobNotFound) {
		logger.Warn().Err(err).Msg("job removed while running")
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to settle job")
	}
}
