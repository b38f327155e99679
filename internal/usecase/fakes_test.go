package usecase

import (
	"billnotify/internal/config"
	"billnotify/internal/domain"
	"billnotify/internal/infra/redisq"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
func (c *testClock) Set(t time.Time)         { c.now = t }

func newQueue(t *testing.T, clock *testClock) *redisq.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q := redisq.NewWithRedis(rdb,
		config.Redis{KeyPrefix: "test", Group: "notifiers"},
		config.Queue{Name: "billNotifications", MaxAttempts: 3, RemoveOnComplete: true},
	)
	q.Now = clock.Now
	require.NoError(t, q.Init(context.Background()))
	return q
}

type fakeTasks struct {
	mu    sync.Mutex
	tasks map[string]*domain.TaskDetail
	err   error
}

func newFakeTasks(tasks ...*domain.TaskDetail) *fakeTasks {
	f := &fakeTasks{tasks: map[string]*domain.TaskDetail{}}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return f
}

func (f *fakeTasks) TaskDetail(_ context.Context, id string) (*domain.TaskDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) TaskExists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tasks[id]
	return ok, f.err
}

func (f *fakeTasks) UnpaidTasks(_ context.Context, limit int) ([]domain.UnpaidTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.UnpaidTask
	for _, t := range f.tasks {
		if t.Status == domain.TaskUnpaid && len(out) < limit {
			out = append(out, domain.UnpaidTask{ID: t.ID, Vendor: t.Bill.Vendor, DueDate: t.DueDate, Amount: t.Bill.Amount})
		}
	}
	return out, nil
}

func (f *fakeTasks) setStatus(id string, s domain.TaskStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[id].Status = s
}

type fakeNotifications struct {
	mu        sync.Mutex
	rows      []*domain.Notification
	createErr error
}

func (f *fakeNotifications) CreateNotification(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	n.ID = fmt.Sprintf("n%d", len(f.rows)+1)
	cp := *n
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeNotifications) MarkSent(_ context.Context, id string, at time.Time) error {
	return f.update(id, func(n *domain.Notification) {
		n.Status = domain.NotificationSent
		n.SentAt = &at
	})
}

func (f *fakeNotifications) MarkFailed(_ context.Context, id string) error {
	return f.update(id, func(n *domain.Notification) { n.Status = domain.NotificationFailed })
}

func (f *fakeNotifications) update(id string, fn func(*domain.Notification)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.rows {
		if n.ID == id {
			fn(n)
			return nil
		}
	}
	return fmt.Errorf("notification %s not found", id)
}

func (f *fakeNotifications) statuses() []domain.NotificationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.NotificationStatus, 0, len(f.rows))
	for _, n := range f.rows {
		out = append(out, n.Status)
	}
	return out
}

type pushed struct {
	To       string
	Reminder domain.Reminder
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []pushed
	err  error
}

func (f *fakeMessenger) Push(_ context.Context, to string, r domain.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, pushed{To: to, Reminder: r})
	return nil
}

func (f *fakeMessenger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func sampleTask(id string, due time.Time) *domain.TaskDetail {
	return &domain.TaskDetail{
		Task: domain.Task{ID: id, BillID: "b-" + id, UserID: "u1", Title: "Electricity", Status: domain.TaskUnpaid, DueDate: due},
		Bill: domain.Bill{ID: "b-" + id, Vendor: "PEA", Amount: 1234.5, Currency: "THB", BillType: domain.BillElectric, DueDate: due},
		User: domain.User{ID: "u1", Name: "Nok", LineUserID: "U123"},
	}
}
