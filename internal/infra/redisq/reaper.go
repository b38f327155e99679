package redisq

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Reaper periodically hands jobs held by crashed consumers back to the queue.
type Reaper struct {
	C        *Client
	Schedule string
	Idle     time.Duration
}

func NewReaper(c *Client, schedule string, idle time.Duration) *Reaper {
	return &Reaper{C: c, Schedule: schedule, Idle: idle}
}

func (r *Reaper) Run(ctx context.Context) error {
	sched := cron.New()
	if _, err := sched.AddFunc(r.Schedule, func() { r.sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid stalled check schedule %q: %w", r.Schedule, err)
	}

	sched.Start()
	log.Ctx(ctx).Info().Str("schedule", r.Schedule).Dur("idle", r.Idle).Msg("stalled job reaper started")

	<-ctx.Done()
	<-sched.Stop().Done()
	return ctx.Err()
}

func (r *Reaper) sweep(ctx context.Context) {
	n, err := r.C.RequeueStalled(ctx, r.Idle)
	if err != nil {
		if ctx.Err() == nil {
			log.Ctx(ctx).Error().Err(err).Msg("stalled job sweep failed")
		}
		return
	}
	if n > 0 {
		log.Ctx(ctx).Info().Int("count", n).Msg("stalled jobs recovered")
	}
}
