package redisq

import (
	"billnotify/internal/domain"
	"billnotify/internal/ports"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ ports.JobStore = (*Client)(nil)

const stalledReason = "stalled"

func (c *Client) Add(ctx context.Context, j domain.Job, runAt time.Time) (bool, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.MaxAttempts == 0 {
		j.MaxAttempts = c.Queue.MaxAttempts
	}

	keys := []string{c.jobKey(j.ID), c.delayedKey(), c.streamKey(), c.completedKey(), c.failedKey()}
	res, err := addScript.Run(ctx, c.Rdb, keys,
		j.ID, string(j.Data.Kind), j.Data.TaskID, j.MaxAttempts, boolFlag(j.Manual),
		c.nowMs(), runAt.UnixMilli(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("add job %s: %w", j.ID, err)
	}
	return res == 1, nil
}

func (c *Client) Claim(ctx context.Context, consumer string, block time.Duration) (*domain.Job, string, error) {
	res, err := c.Rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.Cfg.Group,
		Consumer: consumer,
		Streams:  []string{c.streamKey(), ">"},
		Count:    1,
		Block:    block,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}

	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, "", nil
	}

	msg := res[0].Messages[0]
	var id string
	switch v := msg.Values["job"].(type) {
	case string:
		id = v
	case []byte:
		id = string(v)
	default:
		return nil, "", fmt.Errorf("unexpected job field type: %T", v)
	}

	ok, err := activateScript.Run(ctx, c.Rdb, []string{c.jobKey(id)}, msg.ID, consumer, c.nowMs()).Int()
	if err != nil {
		return nil, "", err
	}
	if ok == 0 {
		// entry outlived its job (removed or requeued meanwhile)
		c.dropEntry(ctx, msg.ID)
		return nil, "", nil
	}

	j, err := c.Get(ctx, id)
	if errors.Is(err, domain.ErrJobNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return j, msg.ID, nil
}

func (c *Client) Complete(ctx context.Context, streamID string, j domain.Job) error {
	keys := []string{c.jobKey(j.ID), c.streamKey(), c.completedKey()}
	res, err := completeScript.Run(ctx, c.Rdb, keys,
		j.ID, streamID, c.Cfg.Group, c.nowMs(), boolFlag(c.Queue.RemoveOnComplete),
	).Int()
	return leaseResult(j.ID, res, err)
}

func (c *Client) Retry(ctx context.Context, streamID string, j domain.Job, runAt time.Time, reason string) error {
	keys := []string{c.jobKey(j.ID), c.streamKey(), c.delayedKey()}
	res, err := retryScript.Run(ctx, c.Rdb, keys, j.ID, streamID, c.Cfg.Group, runAt.UnixMilli(), reason).Int()
	return leaseResult(j.ID, res, err)
}

func (c *Client) Fail(ctx context.Context, streamID string, j domain.Job, reason string) error {
	keys := []string{c.jobKey(j.ID), c.streamKey(), c.failedKey()}
	res, err := failScript.Run(ctx, c.Rdb, keys, j.ID, streamID, c.Cfg.Group, c.nowMs(), reason).Int()
	return leaseResult(j.ID, res, err)
}

func (c *Client) Get(ctx context.Context, id string) (*domain.Job, error) {
	h, err := c.Rdb.HGetAll(ctx, c.jobKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	j := decodeJob(id, h)
	return &j, nil
}

func (c *Client) Promote(ctx context.Context, id string) error {
	keys := []string{c.jobKey(id), c.delayedKey(), c.streamKey()}
	res, err := promoteScript.Run(ctx, c.Rdb, keys, id, c.nowMs()).Int()
	if err != nil {
		return err
	}
	switch res {
	case -1:
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	case 0:
		return fmt.Errorf("%w: %s", domain.ErrJobNotDelayed, id)
	}
	return nil
}

// PromoteDue moves up to limit delayed jobs whose run time has passed.
func (c *Client) PromoteDue(ctx context.Context, now time.Time, limit int64) (int, error) {
	ids, err := c.Rdb.ZRangeByScore(ctx, c.delayedKey(), &redis.ZRangeBy{
		Min:    "-inf",
		Max:    strconv.FormatInt(now.UnixMilli(), 10),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, id := range ids {
		err := c.Promote(ctx, id)
		switch {
		case err == nil:
			moved++
		case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrJobNotDelayed):
			_ = c.Rdb.ZRem(ctx, c.delayedKey(), id).Err()
		default:
			return moved, err
		}
	}
	return moved, nil
}

func (c *Client) Remove(ctx context.Context, id string) error {
	res, err := c.remove(ctx, id, false)
	if err != nil {
		return err
	}
	if res == -1 {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return nil
}

func (c *Client) RemovePending(ctx context.Context, id string) (bool, error) {
	res, err := c.remove(ctx, id, true)
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (c *Client) remove(ctx context.Context, id string, pendingOnly bool) (int, error) {
	keys := []string{c.jobKey(id), c.delayedKey(), c.streamKey(), c.completedKey(), c.failedKey()}
	return removeScript.Run(ctx, c.Rdb, keys, id, c.Cfg.Group, boolFlag(pendingOnly)).Int()
}

func (c *Client) Counts(ctx context.Context) (domain.Counts, error) {
	var (
		delayed, completed, failed, length *redis.IntCmd
		pending                            *redis.XPendingCmd
	)
	_, err := c.Rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		delayed = p.ZCard(ctx, c.delayedKey())
		completed = p.ZCard(ctx, c.completedKey())
		failed = p.ZCard(ctx, c.failedKey())
		length = p.XLen(ctx, c.streamKey())
		pending = p.XPending(ctx, c.streamKey(), c.Cfg.Group)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Counts{}, err
	}

	var active int64
	if xp, err := pending.Result(); err == nil {
		active = xp.Count
	}
	waiting := length.Val() - active
	if waiting < 0 {
		waiting = 0
	}
	return domain.Counts{
		Waiting:   waiting,
		Active:    active,
		Completed: completed.Val(),
		Failed:    failed.Val(),
		Delayed:   delayed.Val(),
	}, nil
}

// IDs returns the ids of every job currently in state.
func (c *Client) IDs(ctx context.Context, state domain.JobState) ([]string, error) {
	switch state {
	case domain.StateDelayed:
		return c.Rdb.ZRange(ctx, c.delayedKey(), 0, -1).Result()
	case domain.StateCompleted:
		return c.Rdb.ZRange(ctx, c.completedKey(), 0, -1).Result()
	case domain.StateFailed:
		return c.Rdb.ZRange(ctx, c.failedKey(), 0, -1).Result()
	case domain.StateWaiting, domain.StateActive:
		jobs, err := c.List(ctx, state, 0)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(jobs))
		for _, j := range jobs {
			ids = append(ids, j.ID)
		}
		return ids, nil
	}
	return nil, fmt.Errorf("unknown job state %q", state)
}

// List returns jobs in state, newest first. limit <= 0 means all.
func (c *Client) List(ctx context.Context, state domain.JobState, limit int) ([]domain.Job, error) {
	var ids []string
	switch state {
	case domain.StateWaiting, domain.StateActive:
		entries, err := c.Rdb.XRange(ctx, c.streamKey(), "-", "+").Result()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if id, ok := e.Values["job"].(string); ok {
				ids = append(ids, id)
			}
		}
	default:
		var err error
		if ids, err = c.IDs(ctx, state); err != nil {
			return nil, err
		}
	}

	jobs, err := c.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := jobs[:0]
	for _, j := range jobs {
		if j.State == state {
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *Client) load(ctx context.Context, ids []string) ([]domain.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := c.Rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, c.jobKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	jobs := make([]domain.Job, 0, len(ids))
	for i, cmd := range cmds {
		if h := cmd.Val(); len(h) > 0 {
			jobs = append(jobs, decodeJob(ids[i], h))
		}
	}
	return jobs, nil
}

// RequeueStalled returns claimed-but-unacknowledged jobs idle for at least
// idle back to WAITING. A stall counts as an attempt, so a job that keeps
// stalling ends up FAILED. It reports how many jobs it moved.
func (c *Client) RequeueStalled(ctx context.Context, idle time.Duration) (int, error) {
	pending, err := c.Rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.streamKey(),
		Group:  c.Cfg.Group,
		Start:  "-",
		End:    "+",
		Count:  1000,
	}).Result()
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, p := range pending {
		if p.Idle < idle {
			continue
		}
		entries, err := c.Rdb.XRangeN(ctx, c.streamKey(), p.ID, p.ID, 1).Result()
		if err != nil {
			return requeued, err
		}
		if len(entries) == 0 {
			c.dropEntry(ctx, p.ID)
			continue
		}
		id, _ := entries[0].Values["job"].(string)

		keys := []string{c.jobKey(id), c.streamKey(), c.failedKey()}
		res, err := requeueScript.Run(ctx, c.Rdb, keys, id, p.ID, c.Cfg.Group, c.nowMs(), stalledReason).Int()
		if err != nil {
			return requeued, err
		}
		switch res {
		case 1:
			requeued++
			log.Ctx(ctx).Warn().Str("job_id", id).Str("consumer", p.Consumer).Dur("idle", p.Idle).Msg("requeued stalled job")
		case 2:
			requeued++
			log.Ctx(ctx).Error().Str("job_id", id).Str("consumer", p.Consumer).Dur("idle", p.Idle).Msg("stalled job failed, attempts exhausted")
		}
	}
	return requeued, nil
}

func (c *Client) dropEntry(ctx context.Context, streamID string) {
	_ = c.Rdb.XAck(ctx, c.streamKey(), c.Cfg.Group, streamID).Err()
	_ = c.Rdb.XDel(ctx, c.streamKey(), streamID).Err()
}

func leaseResult(id string, res int, err error) error {
	if err != nil {
		return err
	}
	if res == 0 {
		return fmt.Errorf("%w: %s no longer held by this consumer", domain.ErrJobNotFound, id)
	}
	return nil
}

func decodeJob(id string, h map[string]string) domain.Job {
	j := domain.Job{
		ID: id,
		Data: domain.Payload{
			TaskID: h["task_id"],
			Kind:   domain.ReminderKind(h["kind"]),
		},
		State:     domain.JobState(h["state"]),
		Manual:    h["manual"] == "1",
		LastError: h["last_error"],
	}
	j.Attempts, _ = strconv.Atoi(h["attempts"])
	j.MaxAttempts, _ = strconv.Atoi(h["max_attempts"])
	j.CreatedAt = msTime(h["created_at"])
	j.RunAt = msTime(h["run_at"])
	if v, ok := h["processed_at"]; ok {
		t := msTime(v)
		j.ProcessedAt = &t
	}
	if v, ok := h["finished_at"]; ok {
		t := msTime(v)
		j.FinishedAt = &t
	}
	return j
}

func msTime(v string) time.Time {
	ms, _ := strconv.ParseInt(v, 10, 64)
	return time.UnixMilli(ms)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
