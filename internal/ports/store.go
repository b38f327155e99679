package ports

import (
	"billnotify/internal/domain"
	"context"
	"time"
)

type TaskReader interface {
	// TaskDetail returns the task joined with bill and assignee, or domain.ErrTaskNotFound.
	TaskDetail(ctx context.Context, id string) (*domain.TaskDetail, error)
	TaskExists(ctx context.Context, id string) (bool, error)
	UnpaidTasks(ctx context.Context, limit int) ([]domain.UnpaidTask, error)
}

// NotificationWriter owns the PENDING -> SENT|FAILED transitions.
type NotificationWriter interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string) error
}

type Messenger interface {
	Push(ctx context.Context, to string, r domain.Reminder) error
}
