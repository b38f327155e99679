package worker

import (
	"billnotify/internal/config"
	"billnotify/internal/infra/line"
	"billnotify/internal/infra/pgstore"
	"billnotify/internal/infra/redisq"
	"billnotify/internal/usecase"
	"billnotify/pkg/backoff"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	ConsumerName string
	Concurrency  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

// Processes are the long-running parts of a worker.
type Processes struct {
	Promoter  *redisq.Promoter
	Reaper    *redisq.Reaper
	Consumers []usecase.Consumer
	Handler   usecase.Handler
}

func Run(cfg Config) error {
	appCfg := config.Load()
	cli := redisq.New(appCfg.Redis, appCfg.Queue)
	defer cli.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Init(ctx); err != nil {
		return err
	}

	loc, err := appCfg.Line.Location()
	if err != nil {
		return err
	}

	db, err := pgstore.Connect(appCfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := pgstore.Close(db); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("close database")
		}
	}()
	store := pgstore.New(db)

	deliverer := &usecase.Deliverer{
		Tasks:         store,
		Notifications: store,
		Messenger:     line.New(appCfg.Line),
		LiffID:        appCfg.Line.LiffID,
		Location:      loc,
	}

	p := Build(cli, appCfg.Queue, cfg, deliverer.Handle)
	return p.Run(ctx)
}

// Build assembles the worker processes around a job store client.
func Build(cli *redisq.Client, q config.Queue, cfg Config, handle usecase.Handler) *Processes {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	policy := backoff.Policy{MaxAttempts: q.MaxAttempts, Base: q.BackoffBase, Max: q.BackoffMax}

	p := &Processes{
		Promoter: redisq.NewPromoter(cli, q.PromoteInterval),
		Reaper:   redisq.NewReaper(cli, q.StalledCheck, q.StallTimeout),
		Handler:  handle,
	}
	for i := 1; i <= cfg.Concurrency; i++ {
		name := cfg.ConsumerName
		if cfg.Concurrency > 1 {
			name = fmt.Sprintf("%s-%d", cfg.ConsumerName, i)
		}
		p.Consumers = append(p.Consumers, usecase.Consumer{
			Q:            cli,
			ConsumerName: name,
			Policy:       policy,
			Block:        q.ClaimBlock,
			BaseBackoff:  cfg.BaseBackoff,
			MaxBackoff:   cfg.MaxBackoff,
		})
	}
	return p
}

// Run blocks until ctx is cancelled or one of the processes fails.
func (p *Processes) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return p.Promoter.Run(ctx) })
	g.Go(func() error { return p.Reaper.Run(ctx) })
	for _, c := range p.Consumers {
		c := c
		g.Go(func() error {
			log.Ctx(ctx).Info().Str("consumer", c.ConsumerName).Msg("consumer started")
			return c.Run(ctx, p.Handler)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		log.Ctx(ctx).Info().Msg("worker stopped")
		return nil
	}
	return err
}
