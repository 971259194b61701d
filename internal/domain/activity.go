package domain

import (
	"context"
	"time"

	"example.com/planner/internal/tracker"
)

// ActivityAggregate is an activity as stored for one owner.
type ActivityAggregate struct {
	tracker.Activity
	OwnerID   string
	UpdatedAt time.Time
}

// Cursor models the pagination token.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ActivityRepository captures persistence operations. Get and SetArchived return
// nil without error when the activity does not exist for the owner.
type ActivityRepository interface {
	FindByIdempotency(ctx context.Context, ownerID, idempotencyKey string) (*ActivityAggregate, error)
	Create(ctx context.Context, aggregate ActivityAggregate, idempotencyKey string) error
	Update(ctx context.Context, aggregate ActivityAggregate, previous tracker.Frequency) error
	SetArchived(ctx context.Context, ownerID, activityID string, archived bool, at time.Time) (*ActivityAggregate, error)
	Get(ctx context.Context, ownerID, activityID string) (*ActivityAggregate, error)
	ListByOwner(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]ActivityAggregate, *Cursor, error)
	Snapshot(ctx context.Context, ownerID string) ([]ActivityAggregate, error)
	UpsertCompletion(ctx context.Context, ownerID string, completion tracker.Completion) (tracker.Completion, error)
}

// Activities strips owner metadata for the engine.
func Activities(aggregates []ActivityAggregate) []tracker.Activity {
	out := make([]tracker.Activity, 0, len(aggregates))
	for _, agg := range aggregates {
		out = append(out, agg.Activity)
	}
	return out
}

// CreateActivityInput captures the payload from the API layer.
type CreateActivityInput struct {
	OwnerID        string
	Title          string
	FrequencyType  string
	ScheduledDays  []string
	TimeOfDay      string
	DomainID       string
	GoalID         string
	IdempotencyKey string
}

// UpdateActivityInput carries a partial edit. Nil fields are left unchanged.
type UpdateActivityInput struct {
	OwnerID       string
	ActivityID    string
	Title         *string
	FrequencyType *string
	ScheduledDays *[]string
	TimeOfDay     *string
	DomainID      *string
	GoalID        *string
}

// ToggleCompletionInput marks the period containing Date done or not done.
type ToggleCompletionInput struct {
	OwnerID    string
	ActivityID string
	Date       tracker.Date
	Completed  bool
	Notes      string
}

// DueResult is the due-set for one date with its plain completion rate.
type DueResult struct {
	Date       tracker.Date
	Activities []tracker.Activity
	Rate       tracker.Rate
}
