package usecase

import (
	"billnotify/internal/domain"
	"billnotify/internal/ports"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ReminderScheduler keeps the DUE_SOON and DUE_TODAY jobs of a task in step
// with the task's due date and status.
type ReminderScheduler struct {
	Q   ports.JobStore
	Now func() time.Time
}

func NewReminderScheduler(q ports.JobStore) *ReminderScheduler {
	return &ReminderScheduler{Q: q, Now: time.Now}
}

// Scheduled reports what Schedule did for one reminder kind. Existing is the
// state of the job that kept the reminder from being added.
type Scheduled struct {
	Kind     domain.ReminderKind
	JobID    string
	FireAt   time.Time
	Added    bool
	Skipped  bool
	Existing domain.JobState
}

// Schedule enqueues every reminder whose fire time is still in the future.
// Calling it again for the same task does not create duplicates.
func (s *ReminderScheduler) Schedule(ctx context.Context, taskID string, dueDate time.Time) ([]Scheduled, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: taskId is required", domain.ErrValidation)
	}
	now := s.Now()
	enq := Enqueuer{Q: s.Q, Now: s.Now}

	out := make([]Scheduled, 0, len(domain.ReminderKinds))
	for _, k := range domain.ReminderKinds {
		sc := Scheduled{Kind: k, JobID: domain.ReminderJobID(k, taskID), FireAt: k.FireAt(dueDate)}
		if !sc.FireAt.After(now) {
			sc.Skipped = true
			out = append(out, sc)
			continue
		}

		_, added, err := enq.At(ctx, k, taskID, sc.FireAt)
		if err != nil {
			return out, fmt.Errorf("schedule %s: %w", sc.JobID, err)
		}
		sc.Added = added
		if !added {
			j, err := s.Q.Get(ctx, sc.JobID)
			switch {
			case err == nil:
				sc.Existing = j.State
			case !errors.Is(err, domain.ErrJobNotFound):
				return out, fmt.Errorf("schedule %s: %w", sc.JobID, err)
			}
		}
		out = append(out, sc)

		logger := log.Ctx(ctx).With().Str("job_id", sc.JobID).Time("fire_at", sc.FireAt).Logger()
		switch {
		case added:
			logger.Info().Msg("reminder scheduled")
		case sc.Existing.IsPending():
			logger.Info().Str("state", sc.Existing.String()).Msg("reminder already scheduled")
		case sc.Existing.IsTerminal():
			logger.Warn().Str("state", sc.Existing.String()).Msg("reminder kept, purge it to schedule again")
		case sc.Existing == domain.StateActive:
			logger.Info().Msg("reminder is running")
		}
	}
	return out, nil
}

// Cancel drops the task's reminders that have not been picked up yet.
// Missing or already running reminders are ignored.
func (s *ReminderScheduler) Cancel(ctx context.Context, taskID string) (int, error) {
	removed := 0
	var errs []error
	for _, k := range domain.ReminderKinds {
		id := domain.ReminderJobID(k, taskID)
		ok, err := s.Q.RemovePending(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("cancel %s: %w", id, err))
			continue
		}
		if ok {
			removed++
			log.Ctx(ctx).Info().Str("job_id", id).Msg("reminder cancelled")
		}
	}
	return removed, errors.Join(errs...)
}

// Reschedule replaces the pending reminders of a task after its due date moved.
func (s *ReminderScheduler) Reschedule(ctx context.Context, taskID string, dueDate time.Time) ([]Scheduled, error) {
	if _, err := s.Cancel(ctx, taskID); err != nil {
		return nil, err
	}
	return s.Schedule(ctx, taskID, dueDate)
}

// OnStatusChange is called whenever a task's payment status changes.
func (s *ReminderScheduler) OnStatusChange(ctx context.Context, taskID string, status domain.TaskStatus, dueDate time.Time) error {
	switch status {
	case domain.TaskPaid:
		_, err := s.Cancel(ctx, taskID)
		return err
	case domain.TaskUnpaid:
		_, err := s.Schedule(ctx, taskID, dueDate)
		return err
	}
	return fmt.Errorf("%w: unknown task status %q", domain.ErrValidation, status)
}
