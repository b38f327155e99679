package redisq

import (
	"billnotify/internal/config"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Client struct {
	Cfg   config.Redis
	Queue config.Queue
	Rdb   *redis.Client
	Now   func() time.Time
}

func New(cfg config.Redis, queue config.Queue) *Client {
	log.Info().Msgf("connecting to redis at %s", cfg.Addr)
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithRedis(c, cfg, queue)
}

// NewWithRedis wraps an existing connection.
func NewWithRedis(rdb *redis.Client, cfg config.Redis, queue config.Queue) *Client {
	return &Client{Cfg: cfg, Queue: queue, Rdb: rdb, Now: time.Now}
}

// Connect → used by API only
func (c *Client) Connect(ctx context.Context) error {
	if err := c.Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.Ctx(ctx).Info().Msg("connected to redis")
	return nil
}

// Init → used by Worker and API, ensures stream + group exist
func (c *Client) Init(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	err := c.Rdb.XGroupCreateMkStream(ctx, c.streamKey(), c.Cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("queue", c.Queue.Name).
		Str("stream", c.streamKey()).
		Str("group", c.Cfg.Group).
		Msg("redis stream and consumer group ready")

	return nil
}

func (c *Client) Close() error {
	return c.Rdb.Close()
}

func (c *Client) Name() string { return c.Queue.Name }

func (c *Client) key(parts ...string) string {
	return c.Cfg.KeyPrefix + ":" + c.Queue.Name + ":" + strings.Join(parts, ":")
}

func (c *Client) jobKey(id string) string { return c.key("job", id) }
func (c *Client) delayedKey() string      { return c.key("delayed") }
func (c *Client) streamKey() string       { return c.key("wait") }
func (c *Client) completedKey() string    { return c.key("completed") }
func (c *Client) failedKey() string       { return c.key("failed") }

func (c *Client) nowMs() int64 { return c.Now().UnixMilli() }
