package eventstore

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventNew     EventType = "new"
	EventChurned EventType = "churned"
	EventRenewed EventType = "renewed"
)

func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventNew, EventChurned, EventRenewed:
		return EventType(s), nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

type SubscriptionStatus string

const (
	StatusActive  SubscriptionStatus = "active"
	StatusChurned SubscriptionStatus = "churned"
)

// DateLayout is the calendar-date wire format for ingested records.
const DateLayout = "2006-01-02"

// Event is one append-only lifecycle log row. Ordering within a date is
// insertion order (id ascending).
type Event struct {
	ID        string    `gorm:"column:id;primaryKey"`
	UserID    string    `gorm:"column:user_id;index"`
	EventType EventType `gorm:"column:event_type"`
	Date      time.Time `gorm:"column:date;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// Subscription is the latest lifecycle state per user, one row per user_id.
// Renewal events never touch this table.
type Subscription struct {
	ID        string             `gorm:"column:id;primaryKey"`
	UserID    string             `gorm:"column:user_id;uniqueIndex"`
	StartDate time.Time          `gorm:"column:start_date;index"`
	EndDate   *time.Time         `gorm:"column:end_date"`
	Amount    int64              `gorm:"column:amount"`
	Status    SubscriptionStatus `gorm:"column:status;index"`
	CreatedAt time.Time          `gorm:"column:created_at"`
	UpdatedAt time.Time          `gorm:"column:updated_at"`
}

// Record is a raw ingestion row as produced by upstream collaborators
// (CSV upload, synthetic generator). Amount is optional; the configured
// default price applies when absent.
type Record struct {
	UserID    string
	EventType string
	Date      string
	Amount    *int64
}

// Snapshot is an immutable read view of both tables, taken under the store
// lock so one report is internally consistent. Events are ordered by date
// then insertion.
type Snapshot struct {
	Subscriptions []*Subscription
	Events        []*Event
	TakenAt       time.Time
}

// Day truncates t to calendar-date granularity in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
