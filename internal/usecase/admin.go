package usecase

import (
	"billnotify/internal/domain"
	"billnotify/internal/ports"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	unpaidTaskLimit = 50
	defaultPageSize = 100
)

type QueueSummary struct {
	Name   string        `json:"name"`
	Counts domain.Counts `json:"counts"`
}

type QueueDetail struct {
	Name   string                        `json:"name"`
	Jobs   map[domain.JobState][]JobView `json:"jobs"`
	Counts domain.Counts                 `json:"counts"`
}

// JobView is a job as the admin surface shows it. Delay is in milliseconds.
type JobView struct {
	domain.Job
	Delay int64 `json:"delay"`
}

// Admin is the operator control surface over the job store.
type Admin struct {
	Q        ports.JobStore
	Tasks    ports.TaskReader
	Enqueuer Enqueuer
	PageSize int
	Now      func() time.Time
}

func NewAdmin(q ports.JobStore, tasks ports.TaskReader) *Admin {
	return &Admin{Q: q, Tasks: tasks, Enqueuer: Enqueuer{Q: q}, PageSize: defaultPageSize, Now: time.Now}
}

func (a *Admin) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *Admin) Summary(ctx context.Context) (QueueSummary, error) {
	counts, err := a.Q.Counts(ctx)
	if err != nil {
		return QueueSummary{}, err
	}
	return QueueSummary{Name: a.Q.Name(), Counts: counts}, nil
}

// QueueDetail lists the most recent jobs of each requested state, newest
// first. With no states it lists all of them.
func (a *Admin) QueueDetail(ctx context.Context, name string, states ...string) (QueueDetail, error) {
	if name != a.Q.Name() {
		return QueueDetail{}, fmt.Errorf("%w: %s", domain.ErrQueueNotFound, name)
	}

	want := domain.AllStates
	if len(states) > 0 {
		want = make([]domain.JobState, 0, len(states))
		for _, s := range states {
			st, ok := domain.ParseJobState(s)
			if !ok {
				return QueueDetail{}, fmt.Errorf("%w: unknown job state %q", domain.ErrValidation, s)
			}
			want = append(want, st)
		}
	}

	counts, err := a.Q.Counts(ctx)
	if err != nil {
		return QueueDetail{}, err
	}

	now := a.now()
	d := QueueDetail{Name: name, Jobs: make(map[domain.JobState][]JobView, len(want)), Counts: counts}
	for _, st := range want {
		views := []JobView{}
		if counts.Of(st) > 0 {
			jobs, err := a.Q.List(ctx, st, a.PageSize)
			if err != nil {
				return QueueDetail{}, fmt.Errorf("list %s jobs: %w", st, err)
			}
			for _, j := range jobs {
				views = append(views, JobView{Job: j, Delay: j.Delay(now).Milliseconds()})
			}
		}
		d.Jobs[st] = views
	}
	return d, nil
}

func (a *Admin) UnpaidTasks(ctx context.Context) ([]domain.UnpaidTask, error) {
	return a.Tasks.UnpaidTasks(ctx, unpaidTaskLimit)
}

// Trigger queues an immediate reminder for a task outside its schedule.
func (a *Admin) Trigger(ctx context.Context, taskID, kind string) (string, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" || kind == "" {
		return "", fmt.Errorf("%w: taskId and type are required", domain.ErrValidation)
	}
	k, err := domain.ParseReminderKind(kind)
	if err != nil {
		return "", err
	}

	ok, err := a.Tasks.TaskExists(ctx, taskID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}

	id, err := a.Enqueuer.Manual(ctx, k, taskID)
	if err != nil {
		return "", err
	}
	log.Ctx(ctx).Info().Str("job_id", id).Msg("manual reminder queued")
	return id, nil
}

// Promote makes a delayed job runnable now.
func (a *Admin) Promote(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("%w: jobId is required", domain.ErrValidation)
	}
	return a.Q.Promote(ctx, jobID)
}

// PromoteAllDelayed promotes every delayed job and returns how many moved.
// A job that fails to move is skipped.
func (a *Admin) PromoteAllDelayed(ctx context.Context) (int, error) {
	return a.each(ctx, domain.StateDelayed, "promote", a.Q.Promote)
}

// DeleteJob removes a job in whatever state it is in.
func (a *Admin) DeleteJob(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("%w: jobId is required", domain.ErrValidation)
	}
	return a.Q.Remove(ctx, jobID)
}

func (a *Admin) PurgeFailed(ctx context.Context) (int, error) {
	return a.each(ctx, domain.StateFailed, "remove", a.Q.Remove)
}

func (a *Admin) PurgeCompleted(ctx context.Context) (int, error) {
	return a.each(ctx, domain.StateCompleted, "remove", a.Q.Remove)
}

func (a *Admin) each(ctx context.Context, st domain.JobState, op string, fn func(context.Context, string) error) (int, error) {
	ids, err := a.Q.IDs(ctx, st)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, id := range ids {
		if err := fn(ctx, id); err != nil {
			if !errors.Is(err, domain.ErrJobNotFound) {
				log.Ctx(ctx).Warn().Err(err).Str("job_id", id).Msgf("%s skipped", op)
			}
			continue
		}
		n++
	}
	return n, nil
}
