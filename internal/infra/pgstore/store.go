package pgstore

import (
	"billnotify/internal/domain"
	"billnotify/internal/ports"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	_ ports.TaskReader         = (*Store)(nil)
	_ ports.NotificationWriter = (*Store)(nil)
)

type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) TaskDetail(ctx context.Context, id string) (*domain.TaskDetail, error) {
	var t Task
	err := s.DB.WithContext(ctx).
		Preload("Bill").
		Preload("User").
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
		}
		return nil, err
	}
	d := toDetail(t)
	return &d, nil
}

func (s *Store) TaskExists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&Task{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// UnpaidTasks lists tasks eligible for a manual reminder, soonest due first.
func (s *Store) UnpaidTasks(ctx context.Context, limit int) ([]domain.UnpaidTask, error) {
	var tasks []Task
	err := s.DB.WithContext(ctx).
		Preload("Bill").
		Where("status = ?", string(domain.TaskUnpaid)).
		Order("due_date asc").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.UnpaidTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, domain.UnpaidTask{
			ID:      t.ID,
			Vendor:  t.Bill.Vendor,
			DueDate: t.DueDate,
			Amount:  t.Bill.Amount,
		})
	}
	return out, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	meta := datatypes.JSONMap{}
	for k, v := range n.Metadata {
		meta[k] = v
	}
	row := Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Status:    string(n.Status),
		Message:   n.Message,
		Metadata:  meta,
		SentAt:    n.SentAt,
		CreatedAt: n.CreatedAt,
	}
	if n.TaskID != "" {
		row.TaskID = &n.TaskID
	}
	return s.DB.WithContext(ctx).Create(&row).Error
}

func (s *Store) MarkSent(ctx context.Context, id string, at time.Time) error {
	return s.updateNotification(ctx, id, map[string]any{
		"status":  string(domain.NotificationSent),
		"sent_at": at,
	})
}

func (s *Store) MarkFailed(ctx context.Context, id string) error {
	return s.updateNotification(ctx, id, map[string]any{
		"status": string(domain.NotificationFailed),
	})
}

func (s *Store) updateNotification(ctx context.Context, id string, fields map[string]any) error {
	res := s.DB.WithContext(ctx).Model(&Notification{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notification %s not found", id)
	}
	return nil
}

func toDetail(t Task) domain.TaskDetail {
	d := domain.TaskDetail{
		Task: domain.Task{
			ID:      t.ID,
			BillID:  t.BillID,
			UserID:  t.UserID,
			Title:   t.Title,
			Status:  domain.TaskStatus(t.Status),
			DueDate: t.DueDate,
		},
		Bill: domain.Bill{
			ID:       t.Bill.ID,
			Vendor:   t.Bill.Vendor,
			Amount:   t.Bill.Amount,
			Currency: t.Bill.Currency,
			BillType: domain.BillType(t.Bill.BillType),
			DueDate:  t.Bill.DueDate,
		},
		User: domain.User{
			ID:   t.User.ID,
			Name: t.User.Name,
		},
	}
	if t.User.LineUserID != nil {
		d.User.LineUserID = *t.User.LineUserID
	}
	return d
}
