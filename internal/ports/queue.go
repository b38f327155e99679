package ports

import (
	"billnotify/internal/domain"
	"context"
	"time"
)

// JobStore is the durable queue. Every state transition of a given job id is
// atomic, and a job is held ACTIVE by at most one consumer.
type JobStore interface {
	Name() string

	// Add creates the job unless a non-terminal job with the same id exists;
	// added is false in that case.
	Add(ctx context.Context, j domain.Job, runAt time.Time) (added bool, err error)
	Claim(ctx context.Context, consumer string, block time.Duration) (*domain.Job, string /*streamID*/, error)
	Complete(ctx context.Context, streamID string, j domain.Job) error
	Retry(ctx context.Context, streamID string, j domain.Job, runAt time.Time, reason string) error
	Fail(ctx context.Context, streamID string, j domain.Job, reason string) error

	Get(ctx context.Context, id string) (*domain.Job, error)
	Promote(ctx context.Context, id string) error
	PromoteDue(ctx context.Context, now time.Time, limit int64) (int, error)
	// Remove deletes the job in any state; ErrJobNotFound when absent.
	Remove(ctx context.Context, id string) error
	// RemovePending deletes the job only while DELAYED or WAITING.
	RemovePending(ctx context.Context, id string) (bool, error)

	Counts(ctx context.Context) (domain.Counts, error)
	List(ctx context.Context, state domain.JobState, limit int) ([]domain.Job, error)
	IDs(ctx context.Context, state domain.JobState) ([]string, error)
	RequeueStalled(ctx context.Context, idle time.Duration) (int, error)
}

type Promoter interface {
	// moves due delayed jobs into the wait stream
	Run(ctx context.Context) error
}
