// Package events defines the payloads the planner publishes through its outbox.
package events

import "time"

// Event types written to the outbox.
const (
	TypeActivityCreated   = "activity.created"
	TypeActivityUpdated   = "activity.updated"
	TypeActivityArchived  = "activity.archived"
	TypeCompletionToggled = "completion.toggled"
)

// ActivityCreated is emitted when a new activity is accepted.
type ActivityCreated struct {
	ActivityID    string    `json:"activity_id"`
	OwnerID       string    `json:"owner_id"`
	Title         string    `json:"title"`
	FrequencyType string    `json:"frequency_type"`
	ScheduledDays []string  `json:"scheduled_days"`
	TimeOfDay     string    `json:"time_of_day,omitempty"`
	DomainID      string    `json:"domain_id,omitempty"`
	GoalID        string    `json:"goal_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ActivityUpdated carries the activity's fields after an edit.
type ActivityUpdated struct {
	ActivityID        string    `json:"activity_id"`
	OwnerID           string    `json:"owner_id"`
	Title             string    `json:"title"`
	FrequencyType     string    `json:"frequency_type"`
	PreviousFrequency string    `json:"previous_frequency,omitempty"`
	ScheduledDays     []string  `json:"scheduled_days"`
	TimeOfDay         string    `json:"time_of_day,omitempty"`
	DomainID          string    `json:"domain_id,omitempty"`
	GoalID            string    `json:"goal_id,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ActivityArchived tracks archive and unarchive transitions.
type ActivityArchived struct {
	ActivityID string    `json:"activity_id"`
	OwnerID    string    `json:"owner_id"`
	Archived   bool      `json:"archived"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CompletionToggled is emitted whenever a period of an activity is marked done or undone.
type CompletionToggled struct {
	CompletionID string     `json:"completion_id"`
	ActivityID   string     `json:"activity_id"`
	OwnerID      string     `json:"owner_id"`
	PeriodKey    string     `json:"period_key"`
	Date         string     `json:"date"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}
