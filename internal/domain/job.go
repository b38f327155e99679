package domain

import (
	"fmt"
	"strings"
	"time"
)

type JobState string

const (
	StateDelayed   JobState = "delayed"
	StateWaiting   JobState = "waiting"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// AllStates is the order the admin surface reports states in.
var AllStates = []JobState{StateWaiting, StateActive, StateCompleted, StateFailed, StateDelayed}

func (s JobState) String() string {
	return string(s)
}

// IsTerminal reports whether the job stays put until an operator purges it.
func (s JobState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// IsPending reports whether the job has not been picked up by a worker yet.
func (s JobState) IsPending() bool {
	return s == StateDelayed || s == StateWaiting
}

func ParseJobState(s string) (JobState, bool) {
	for _, st := range AllStates {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

type ReminderKind string

const (
	KindDueSoon  ReminderKind = "DUE_SOON"
	KindDueToday ReminderKind = "DUE_TODAY"
)

var ReminderKinds = []ReminderKind{KindDueSoon, KindDueToday}

func ParseReminderKind(s string) (ReminderKind, error) {
	switch ReminderKind(s) {
	case KindDueSoon, KindDueToday:
		return ReminderKind(s), nil
	}
	return "", fmt.Errorf("%w: type must be %s or %s", ErrInvalidKind, KindDueSoon, KindDueToday)
}

// Lead is how long before the due date the reminder fires.
func (k ReminderKind) Lead() time.Duration {
	switch k {
	case KindDueSoon:
		return 24 * time.Hour
	case KindDueToday:
		return 0
	}
	panic(fmt.Sprintf("unknown reminder kind %q", string(k)))
}

// FireAt returns the instant the reminder for a task due at dueDate becomes eligible.
func (k ReminderKind) FireAt(dueDate time.Time) time.Time {
	return dueDate.Add(-k.Lead())
}

func (k ReminderKind) slug() string {
	return strings.ReplaceAll(strings.ToLower(string(k)), "_", "-")
}

// ReminderJobID is the dedup key of the scheduled reminder of kind k for a task.
func ReminderJobID(k ReminderKind, taskID string) string {
	return k.slug() + "-" + taskID
}

// ManualJobID never collides with ReminderJobID, so manual sends bypass dedup.
func ManualJobID(k ReminderKind, taskID string, at time.Time) string {
	return fmt.Sprintf("manual-%s-%s-%d", strings.ToLower(string(k)), taskID, at.UnixMilli())
}

type Payload struct {
	TaskID string       `json:"taskId"`
	Kind   ReminderKind `json:"type"`
}

type Job struct {
	ID          string     `json:"id"`
	Data        Payload    `json:"data"`
	State       JobState   `json:"state"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"maxAttempts"`
	Manual      bool       `json:"manual"`
	CreatedAt   time.Time  `json:"createdAt"`
	RunAt       time.Time  `json:"runAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	LastError   string     `json:"failedReason,omitempty"`
}

// Delay is the remaining time before the job is eligible, never negative.
func (j Job) Delay(now time.Time) time.Duration {
	if d := j.RunAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

func (c Counts) Of(s JobState) int64 {
	switch s {
	case StateWaiting:
		return c.Waiting
	case StateActive:
		return c.Active
	case StateCompleted:
		return c.Completed
	case StateFailed:
		return c.Failed
	case StateDelayed:
		return c.Delayed
	}
	return 0
}
