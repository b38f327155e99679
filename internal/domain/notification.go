package domain

import "time"

type NotificationType string

const (
	NotificationBillCreated NotificationType = "BILL_CREATED"
	NotificationDueSoon     NotificationType = NotificationType(KindDueSoon)
	NotificationDueToday    NotificationType = NotificationType(KindDueToday)
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
	NotificationRead    NotificationStatus = "READ"
)

// Notification is the audit row of one delivery attempt.
type Notification struct {
	ID        string
	UserID    string
	TaskID    string
	Type      NotificationType
	Status    NotificationStatus
	Message   string
	Metadata  map[string]string
	SentAt    *time.Time
	ReadAt    *time.Time
	CreatedAt time.Time
}

// Reminder is rendered message content handed to the messenger.
type Reminder struct {
	Type    NotificationType
	Title   string
	AltText string
	Vendor  string
	Amount  string
	DueDate string
	Glyph   string
	Link    string
	Accent  string
	Action  string
}
