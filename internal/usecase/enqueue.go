package usecase

import (
	"billnotify/internal/domain"
	"billnotify/internal/ports"
	"context"
	"time"
)

// Enqueuer builds reminder jobs and hands them to the job store.
type Enqueuer struct {
	Q   ports.JobStore
	Now func() time.Time
}

func (e Enqueuer) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// At enqueues the scheduled reminder of kind k for a task. A reminder that is
// already outstanding is left untouched and added is false.
func (e Enqueuer) At(ctx context.Context, k domain.ReminderKind, taskID string, runAt time.Time) (string, bool, error) {
	j := domain.Job{
		ID:   domain.ReminderJobID(k, taskID),
		Data: domain.Payload{TaskID: taskID, Kind: k},
	}
	added, err := e.Q.Add(ctx, j, runAt)
	return j.ID, added, err
}

// Manual enqueues a one-off reminder that runs immediately and is never
// deduplicated against the schedule.
func (e Enqueuer) Manual(ctx context.Context, k domain.ReminderKind, taskID string) (string, error) {
	now := e.now()
	j := domain.Job{
		ID:     domain.ManualJobID(k, taskID, now),
		Data:   domain.Payload{TaskID: taskID, Kind: k},
		Manual: true,
	}
	if _, err := e.Q.Add(ctx, j, now); err != nil {
		return "", err
	}
	return j.ID, nil
}
