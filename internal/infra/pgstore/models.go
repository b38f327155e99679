package pgstore

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID         string  `gorm:"primaryKey;type:text"`
	Name       string  `gorm:"type:text"`
	LineUserID *string `gorm:"type:text;uniqueIndex"`
	CreatedAt  time.Time
}

type Bill struct {
	ID          string    `gorm:"primaryKey;type:text"`
	UserID      string    `gorm:"index;not null"`
	Vendor      string    `gorm:"type:text;not null"`
	Amount      float64   `gorm:"type:numeric(12,2);not null"`
	Currency    string    `gorm:"type:text;not null;default:'THB'"`
	BillType    string    `gorm:"type:text;not null;default:'OTHER'"`
	DueDate     time.Time `gorm:"not null"`
	RawImageURL string    `gorm:"type:text"`
	CreatedAt   time.Time
}

type Task struct {
	ID        string     `gorm:"primaryKey;type:text"`
	BillID    string     `gorm:"index;not null"`
	UserID    string     `gorm:"index;not null"`
	Title     string     `gorm:"type:text"`
	Status    string     `gorm:"type:text;not null;default:'UNPAID'"` // UNPAID/PAID
	DueDate   time.Time  `gorm:"not null"`
	PaidAt    *time.Time `gorm:"type:timestamptz"`
	Bill      Bill       `gorm:"foreignKey:BillID"`
	User      User       `gorm:"foreignKey:UserID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Notification struct {
	ID        string            `gorm:"primaryKey;type:text"`
	UserID    string            `gorm:"index;not null"`
	TaskID    *string           `gorm:"index"`
	Type      string            `gorm:"type:text;not null"`
	Status    string            `gorm:"type:text;index;not null"` // PENDING/SENT/FAILED/READ
	Message   string            `gorm:"type:text;not null"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	SentAt    *time.Time        `gorm:"type:timestamptz"`
	ReadAt    *time.Time        `gorm:"type:timestamptz"`
	CreatedAt time.Time
}
