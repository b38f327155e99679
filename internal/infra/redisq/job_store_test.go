package redisq

import (
	"billnotify/internal/config"
	"billnotify/internal/domain"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestClient(t *testing.T) (*Client, *testClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := &testClock{now: time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)}
	c := NewWithRedis(rdb,
		config.Redis{KeyPrefix: "test", Group: "notifiers"},
		config.Queue{Name: "billNotifications", MaxAttempts: 3, RemoveOnComplete: true},
	)
	c.Now = clock.Now
	require.NoError(t, c.Init(context.Background()))
	return c, clock
}

func reminder(kind domain.ReminderKind, taskID string) domain.Job {
	return domain.Job{
		ID:   domain.ReminderJobID(kind, taskID),
		Data: domain.Payload{TaskID: taskID, Kind: kind},
	}
}

func TestAdd_DelayedAndDeduplicated(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()

	added, err := c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, added)

	j, err := c.Get(ctx, "due-today-t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateDelayed, j.State)
	assert.Equal(t, 3, j.MaxAttempts)
	assert.Equal(t, clock.now.Add(time.Hour).UnixMilli(), j.RunAt.UnixMilli())
	assert.Equal(t, "t1", j.Data.TaskID)

	counts, err := c.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Delayed: 1}, counts)
}

func TestAdd_ImmediateIsWaitingAndClaimable(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()

	added, err := c.Add(ctx, reminder(domain.KindDueSoon, "t1"), clock.now)
	require.NoError(t, err)
	require.True(t, added)

	counts, err := c.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Waiting)

	j, sid, err := c.Claim(ctx, "w1", -1)
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.NotEmpty(t, sid)
	assert.Equal(t, domain.StateActive, j.State)
	require.NotNil(t, j.ProcessedAt)

	counts, err = c.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.Waiting)
	assert.Equal(t, int64(1), counts.Active)
}

func TestClaim_Exclusive(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()

	_, err := c.Add(ctx, reminder(domain.KindDueSoon, "t1"), clock.now)
	require.NoError(t, err)

	first, _, err := c.Claim(ctx, "w1", -1)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, sid, err := c.Claim(ctx, "w2", -1)
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Empty(t, sid)
}

func TestComplete_RemovesJob(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()

	_, err := c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now)
	require.NoError(t, err)
	j, sid, err := c.Claim(ctx, "w1", -1)
	require.NoError(t, err)

	require.NoError(t, c.Complete(ctx, sid, *j))

	_, err = c.Get(ctx, j.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	counts, err := c.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{}, counts)
}

func TestComplete_RetainedWhenConfigured(t *testing.T) {
	c, clock := newTestClient(t)
	c.Queue.RemoveOnComplete = false
	ctx := context.Background()

	_, err := c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now)
	require.NoError(t, err)
	j, sid, err := c.Claim(ctx, "w1", -1)
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, sid, *j))

	got, err := c.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, got.State)
	assert.Equal(t, 1, got.Attempts)

	n, err := c.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.Completed)
}

func TestRetryThenFail(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()

	_, err := c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now)
	require.NoError(t, err)
	j, sid, err := c.Claim(ctx, "w1", -1)
	require.NoError(t, err)

	runAt := clock.now.Add(2 * time.Second)
	require.NoError(t, c.Retry(ctx, sid, *j, runAt, "boom"))

	got, err := c.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDelayed, got.State)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "boom", got.LastError)
	assert.Equal(t, runAt.UnixMilli(), got.RunAt.UnixMilli())

	clock.Advance(2 * time.Second)
	moved, err := c.PromoteDue(ctx, clock.now, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	j, sid, err = c.Claim(ctx, "w1", -1)
	require.NoError(t, err)
	require.NotNil(t, j)
	require.NoError(t, c.Fail(ctx, sid, *j, "messaging API returned 500"))

	got, err = c.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, got.State)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "messaging API returned 500", got.LastError)
	require.NotNil(t, got.FinishedAt)

	counts, err := c.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Failed: 1}, counts)
}

func TestAdd_KeepsFailedJob(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()

	_, err := c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now)
	require.NoError(t, err)
	j, sid, err := c.Claim(ctx, "w1", -1)
	require.NoError(t, err)
	require.NoError(t, c.Fail(ctx, sid, *j, "boom"))

	added, err := c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, added)

	got, err := c.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, got.State)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "boom", got.LastError)

	// purging the failed record frees the id again
	require.NoError(t, c.Remove(ctx, j.ID))
	added, err = c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, added)

	counts, err := c.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Delayed: 1}, counts)
}

func TestAdd_ReplacesCompletedJob(t *testing.T) {
	c, clock := newTestClient(t)
	c.Queue.RemoveOnComplete = false
	ctx := context.Background()

	_, err := c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now)
	require.NoError(t, err)
	j, sid, err := c.Claim(ctx, "w1", -1)
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, sid, *j))

	added, err := c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, added)

	got, err := c.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDelayed, got.State)
	assert.Zero(t, got.Attempts)

	counts, err := c.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Delayed: 1}, counts)
}

func TestPromote(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()

	_, err := c.Add(ctx, reminder(domain.KindDueSoon, "t1"), clock.now.Add(48*time.Hour))
	require.NoError(t, err)

	require.NoError(t, c.Promote(ctx, "due-soon-t1"))
	got, err := c.Get(ctx, "due-soon-t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateWaiting, got.State)

	// already waiting: no-op
	require.NoError(t, c.Promote(ctx, "due-soon-t1"))

	_, _, err = c.Claim(ctx, "w1", -1)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Promote(ctx, "due-soon-t1"), domain.ErrJobNotDelayed)
	assert.ErrorIs(t, c.Promote(ctx, "missing"), domain.ErrJobNotFound)
}

func TestPromoteDue_OnlyDueJobs(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()

	_, err := c.Add(ctx, reminder(domain.KindDueSoon, "t1"), clock.now.Add(24*time.Hour))
	require.NoError(t, err)
	_, err = c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now.Add(48*time.Hour))
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	moved, err := c.PromoteDue(ctx, clock.now, 128)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	soon, err := c.Get(ctx, "due-soon-t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateWaiting, soon.State)

	today, err := c.Get(ctx, "due-today-t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateDelayed, today.State)
}

func TestRemove(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()

	_, err := c.Add(ctx, reminder(domain.KindDueSoon, "t1"), clock.now.Add(time.Hour))
	require.NoError(t, err)
	_, err = c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now)
	require.NoError(t, err)

	removed, err := c.RemovePending(ctx, "due-soon-t1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.RemovePending(ctx, "due-soon-t1")
	require.NoError(t, err)
	assert.False(t, removed)

	j, sid, err := c.Claim(ctx, "w1", -1)
	require.NoError(t, err)
	require.NotNil(t, j)

	removed, err = c.RemovePending(ctx, j.ID)
	require.NoError(t, err)
	assert.False(t, removed, "active jobs are not cancelled")

	require.NoError(t, c.Remove(ctx, j.ID))
	assert.ErrorIs(t, c.Remove(ctx, j.ID), domain.ErrJobNotFound)
	assert.ErrorIs(t, c.Complete(ctx, sid, *j), domain.ErrJobNotFound)

	counts, err := c.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{}, counts)
}

func TestRemove_WaitingIsNeverDelivered(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()

	_, err := c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now)
	require.NoError(t, err)
	require.NoError(t, c.Remove(ctx, "due-today-t1"))

	j, _, err := c.Claim(ctx, "w1", -1)
	require.NoError(t, err)
	assert.Nil(t, j)
}

func TestList_NewestFirst(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := c.Add(ctx, reminder(domain.KindDueToday, id), clock.now.Add(time.Hour))
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	jobs, err := c.List(ctx, domain.StateDelayed, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "due-today-c", jobs[0].ID)
	assert.Equal(t, "due-today-b", jobs[1].ID)

	ids, err := c.IDs(ctx, domain.StateDelayed)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	waiting, err := c.List(ctx, domain.StateWaiting, 0)
	require.NoError(t, err)
	assert.Empty(t, waiting)
}

func TestRequeueStalled(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()

	_, err := c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now)
	require.NoError(t, err)
	j, oldSID, err := c.Claim(ctx, "crashed", -1)
	require.NoError(t, err)
	require.NotNil(t, j)

	n, err := c.RequeueStalled(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := c.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateWaiting, got.State)
	assert.Equal(t, 1, got.Attempts)

	j2, sid, err := c.Claim(ctx, "healthy", -1)
	require.NoError(t, err)
	require.NotNil(t, j2)
	assert.Equal(t, j.ID, j2.ID)
	assert.NotEqual(t, oldSID, sid)

	// the crashed consumer can no longer settle the job
	assert.ErrorIs(t, c.Complete(ctx, oldSID, *j), domain.ErrJobNotFound)
	require.NoError(t, c.Complete(ctx, sid, *j2))
}

func TestRequeueStalled_FailsAtMaxAttempts(t *testing.T) {
	c, clock := newTestClient(t)
	ctx := context.Background()

	_, err := c.Add(ctx, reminder(domain.KindDueToday, "t1"), clock.now)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		j, _, err := c.Claim(ctx, "crashed", -1)
		require.NoError(t, err)
		require.NotNil(t, j, "claim %d", i)

		clock.Advance(time.Minute)
		n, err := c.RequeueStalled(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := c.Get(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, i, got.Attempts)
		if i < 3 {
			assert.Equal(t, domain.StateWaiting, got.State)
		}
	}

	got, err := c.Get(ctx, "due-today-t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, got.State)
	assert.Equal(t, "stalled", got.LastError)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, clock.now.UnixMilli(), got.FinishedAt.UnixMilli())

	j, _, err := c.Claim(ctx, "healthy", -1)
	require.NoError(t, err)
	assert.Nil(t, j)

	counts, err := c.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Failed)
	assert.Zero(t, counts.Waiting)
	assert.Zero(t, counts.Active)

	n, err := c.RequeueStalled(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
