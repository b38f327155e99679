package domain

import "time"

type TaskStatus string

const (
	TaskUnpaid TaskStatus = "UNPAID"
	TaskPaid   TaskStatus = "PAID"
)

type BillType string

const (
	BillElectric BillType = "ELECTRIC"
	BillWater    BillType = "WATER"
	BillInternet BillType = "INTERNET"
	BillCar      BillType = "CAR"
	BillHome     BillType = "HOME"
	BillOther    BillType = "OTHER"
)

var billGlyphs = map[BillType]string{
	BillElectric: "⚡",
	BillWater:    "💧",
	BillInternet: "🌐",
	BillCar:      "🚗",
	BillHome:     "🏠",
	BillOther:    "📄",
}

func (b BillType) Glyph() string {
	if g, ok := billGlyphs[b]; ok {
		return g
	}
	return billGlyphs[BillOther]
}

type User struct {
	ID         string
	Name       string
	LineUserID string
}

type Bill struct {
	ID       string
	Vendor   string
	Amount   float64
	Currency string
	BillType BillType
	DueDate  time.Time
}

type Task struct {
	ID      string
	BillID  string
	UserID  string
	Title   string
	Status  TaskStatus
	DueDate time.Time
}

// TaskDetail is a task joined with its bill and assignee.
type TaskDetail struct {
	Task
	Bill Bill
	User User
}

type UnpaidTask struct {
	ID      string    `json:"id"`
	Vendor  string    `json:"vendor"`
	DueDate time.Time `json:"dueDate"`
	Amount  float64   `json:"amount"`
}
