package redisq

import (
	"billnotify/internal/ports"
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

var _ ports.Promoter = (*Promoter)(nil)

// Promoter is the queue clock: it moves delayed jobs into the wait stream once
// their run time has passed.
type Promoter struct {
	C        *Client
	Interval time.Duration
	Batch    int64
}

func NewPromoter(c *Client, interval time.Duration) *Promoter {
	return &Promoter{C: c, Interval: interval, Batch: 128}
}

func (s *Promoter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		if err := s.moveDue(ctx); err != nil && ctx.Err() == nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to promote due jobs")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Promoter) moveDue(ctx context.Context) error {
	for {
		n, err := s.C.PromoteDue(ctx, s.C.Now(), s.Batch)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Ctx(ctx).Debug().Int("count", n).Msg("promoted due jobs")
		}
		if int64(n) < s.Batch {
			return nil
		}
	}
}
