package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies what kind of reminder a notification is. The set is closed:
// the content renderer has one arm per value plus a generic fallback.
type Type string

const (
	TypeExamCreated      Type = "EXAM_CREATED"
	TypeExamWeekReminder Type = "EXAM_WEEK_REMINDER"
	TypeExam3DayReminder Type = "EXAM_3_DAY_REMINDER"
	TypeExam1DayReminder Type = "EXAM_1_DAY_REMINDER"
	TypeExamToday        Type = "EXAM_TODAY"
	TypeExam1Hour        Type = "EXAM_1_HOUR"

	TypeEventCreated      Type = "EVENT_CREATED"
	TypeEvent3DayReminder Type = "EVENT_3_DAY_REMINDER"
	TypeEventToday        Type = "EVENT_TODAY"

	TypeSessionCreated       Type = "SESSION_CREATED"
	TypeSessionPrepare       Type = "SESSION_PREPARE"
	TypeSessionFinalWarning  Type = "SESSION_FINAL_WARNING"
	TypeSessionStart         Type = "SESSION_START"
	TypeSessionMidpointBreak Type = "SESSION_MIDPOINT_BREAK"
	TypeSessionFinished      Type = "SESSION_FINISHED"

	TypeStreakWarning Type = "STREAK_WARNING"
	TypeStreakExpired Type = "STREAK_EXPIRED"
)

// Status is the delivery state of a notification. PENDING is the only
// non-terminal state; SENT and FAILED are final.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Terminal reports whether s is a final delivery state.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// EntitySnapshot is the frozen copy of the source entity fields captured at
// schedule time. Rendering always reads from the snapshot, never from the
// live entity, so later edits do not change pending reminders.
type EntitySnapshot struct {
	Title        string   `json:"title,omitempty"`
	Date         string   `json:"date,omitempty"` // 2006-01-02
	Time         string   `json:"time,omitempty"` // 15:04, may be absent
	Location     string   `json:"location,omitempty"`
	Content      string   `json:"content,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	StartTime    string   `json:"startTime,omitempty"` // RFC3339
	EndTime      string   `json:"endTime,omitempty"`   // RFC3339
	Name         string   `json:"name,omitempty"`
	CurrentCount int      `json:"currentCount,omitempty"`

	// Pre-rendered content, preferred over the renderer when both are set.
	NotificationTitle string `json:"notificationTitle,omitempty"`
	NotificationBody  string `json:"notificationBody,omitempty"`
}

// Value serializes the snapshot for storage in a JSONB column.
func (e EntitySnapshot) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan deserializes the snapshot from a JSONB column.
func (e *EntitySnapshot) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	case nil:
		*e = EntitySnapshot{}
		return nil
	default:
		return fmt.Errorf("unsupported entity snapshot source type %T", src)
	}
}

// Notification represents a single scheduled reminder.
type Notification struct {
	ID           uuid.UUID      `json:"id"`            // unique identifier, assigned at creation
	UserID       string         `json:"user_id"`       // owning user reference
	Type         Type           `json:"type"`          // reminder kind from the closed set
	EntityID     string         `json:"entity_id"`     // originating domain object id
	EntityType   string         `json:"entity_type"`   // exam, event, session, streak
	EntityData   EntitySnapshot `json:"entity_data"`   // frozen render input
	ScheduledFor time.Time      `json:"scheduled_for"` // delivery eligibility instant, set once
	Status       Status         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ToJSON serializes the notification.
func (n Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

// FromJSON deserializes a notification.
func FromJSON(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("unmarshal notification: %w", err)
	}
	return n, nil
}
