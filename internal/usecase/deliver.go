package usecase

import (
	"billnotify/internal/domain"
	"billnotify/internal/ports"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	accentDueToday = "#FF6B6B"
	accentDueSoon  = "#FFA500"
	accentCreated  = "#1DB446"
)

// Deliverer sends reminders and records each attempt as a notification row.
type Deliverer struct {
	Tasks         ports.TaskReader
	Notifications ports.NotificationWriter
	Messenger     ports.Messenger
	LiffID        string
	Location      *time.Location
	Now           func() time.Time
}

func (d *Deliverer) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// Handle runs one reminder job. It is a Handler for the Consumer.
func (d *Deliverer) Handle(ctx context.Context, j domain.Job) domain.Result {
	if _, err := domain.ParseReminderKind(string(j.Data.Kind)); err != nil {
		return domain.Fatal(err)
	}

	task, err := d.Tasks.TaskDetail(ctx, j.Data.TaskID)
	if errors.Is(err, domain.ErrTaskNotFound) {
		return domain.Fatal(err)
	}
	if err != nil {
		return domain.Retry(fmt.Errorf("load task %s: %w", j.Data.TaskID, err))
	}

	if task.Status == domain.TaskPaid {
		return domain.Skipped("already_paid")
	}
	if task.User.LineUserID == "" {
		return domain.Fatal(fmt.Errorf("%w: user %s", domain.ErrNoRecipient, task.UserID))
	}

	r := d.Render(j.Data.Kind, task)
	n := &domain.Notification{
		UserID:   task.UserID,
		TaskID:   task.ID,
		Type:     r.Type,
		Status:   domain.NotificationPending,
		Message:  dueMessage(j.Data.Kind, task.Bill.Vendor),
		Metadata: map[string]string{"billId": task.BillID, "taskId": task.ID},
	}
	if err := d.Notifications.CreateNotification(ctx, n); err != nil {
		return domain.Retry(fmt.Errorf("create notification: %w", err))
	}

	return d.send(ctx, n, task.User.LineUserID, r)
}

func (d *Deliverer) send(ctx context.Context, n *domain.Notification, to string, r domain.Reminder) domain.Result {
	if err := d.Messenger.Push(ctx, to, r); err != nil {
		if mErr := d.Notifications.MarkFailed(ctx, n.ID); mErr != nil {
			log.Ctx(ctx).Error().Err(mErr).Str("notification_id", n.ID).Msg("failed to mark notification failed")
		}
		return domain.Retry(err)
	}

	if err := d.Notifications.MarkSent(ctx, n.ID, d.now()); err != nil {
		// the message is out; redelivering would duplicate it
		log.Ctx(ctx).Error().Err(err).Str("notification_id", n.ID).Msg("failed to mark notification sent")
	}
	log.Ctx(ctx).Info().Str("notification_id", n.ID).Str("type", string(r.Type)).Msg("notification sent")
	return domain.Ok()
}

// AnnounceBill tells the assignee a bill was added. Failures are logged and
// recorded on the notification row; they never reach the caller as errors.
func (d *Deliverer) AnnounceBill(ctx context.Context, taskID string) domain.Result {
	task, err := d.Tasks.TaskDetail(ctx, taskID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("task_id", taskID).Msg("bill announcement skipped")
		return domain.Fatal(err)
	}
	if task.User.LineUserID == "" {
		return domain.Skipped("no_recipient")
	}

	n := &domain.Notification{
		UserID:   task.UserID,
		TaskID:   task.ID,
		Type:     domain.NotificationBillCreated,
		Status:   domain.NotificationPending,
		Message:  fmt.Sprintf("Bill added: %s - %s", task.Bill.Vendor, d.amount(task.Bill.Amount)),
		Metadata: map[string]string{"billId": task.Bill.ID, "taskId": task.ID},
	}
	if err := d.Notifications.CreateNotification(ctx, n); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("task_id", taskID).Msg("bill announcement not recorded")
		return domain.Fatal(err)
	}

	res := d.send(ctx, n, task.User.LineUserID, d.RenderCreated(task))
	if res.Outcome == domain.OutcomeRetry {
		log.Ctx(ctx).Error().Err(res.Err).Str("task_id", taskID).Msg("bill announcement failed")
		return domain.Fatal(res.Err)
	}
	return res
}

// Render builds the reminder content of kind k for a task.
func (d *Deliverer) Render(k domain.ReminderKind, t *domain.TaskDetail) domain.Reminder {
	r := d.base(t)
	switch k {
	case domain.KindDueToday:
		r.Type, r.Title, r.Accent, r.Action = domain.NotificationDueToday, "⚠️ Bill Due Today!", accentDueToday, "Pay Now"
	case domain.KindDueSoon:
		r.Type, r.Title, r.Accent, r.Action = domain.NotificationDueSoon, "⏰ Bill Due Soon", accentDueSoon, "Pay Now"
	}
	r.AltText = r.Title + ": " + r.Vendor
	return r
}

func (d *Deliverer) RenderCreated(t *domain.TaskDetail) domain.Reminder {
	r := d.base(t)
	r.Type, r.Title, r.Accent, r.Action = domain.NotificationBillCreated, "✅ Bill Added", accentCreated, "View Task"
	r.AltText = "Bill added: " + r.Vendor
	return r
}

func (d *Deliverer) base(t *domain.TaskDetail) domain.Reminder {
	due := t.DueDate
	if d.Location != nil {
		due = due.In(d.Location)
	}
	return domain.Reminder{
		Vendor:  t.Bill.Vendor,
		Amount:  d.amount(t.Bill.Amount),
		DueDate: due.Format("Jan 2, 2006"),
		Glyph:   t.Bill.BillType.Glyph(),
		Link:    fmt.Sprintf("https://liff.line.me/%s?path=/tasks/%s", d.LiffID, t.ID),
	}
}

func (d *Deliverer) amount(v float64) string {
	return "฿" + message.NewPrinter(language.English).Sprintf("%.2f", v)
}

func dueMessage(k domain.ReminderKind, vendor string) string {
	if k == domain.KindDueToday {
		return "Bill due today: " + vendor
	}
	return "Bill due soon: " + vendor
}
