package api

import (
	"time"

	"example.com/planner/internal/domain"
	"example.com/planner/internal/tracker"
)

// CreateActivityRequest is the payload for POST /v1/activities.
type CreateActivityRequest struct {
	Title         string   `json:"title"`
	FrequencyType string   `json:"frequency_type"`
	ScheduledDays []string `json:"scheduled_days"`
	TimeOfDay     string   `json:"time_of_day"`
	DomainID      string   `json:"domain_id"`
	GoalID        string   `json:"goal_id"`
}

// UpdateActivityRequest is the payload for PATCH /v1/activities/{id}. Absent fields are kept.
type UpdateActivityRequest struct {
	Title         *string   `json:"title"`
	FrequencyType *string   `json:"frequency_type"`
	ScheduledDays *[]string `json:"scheduled_days"`
	TimeOfDay     *string   `json:"time_of_day"`
	DomainID      *string   `json:"domain_id"`
	GoalID        *string   `json:"goal_id"`
}

// ToggleCompletionRequest is the payload for PUT /v1/activities/{id}/completions.
type ToggleCompletionRequest struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Notes     string `json:"notes"`
}

// CreateActivityResponse describes the response body for create.
type CreateActivityResponse struct {
	Activity ActivityView `json:"activity"`
	Replay   bool         `json:"idempotent_replay"`
}

// ActivityView is the JSON shape of an activity.
type ActivityView struct {
	ActivityID    string           `json:"activity_id"`
	Title         string           `json:"title"`
	FrequencyType string           `json:"frequency_type"`
	ScheduledDays []string         `json:"scheduled_days"`
	TimeOfDay     string           `json:"time_of_day,omitempty"`
	DomainID      string           `json:"domain_id,omitempty"`
	GoalID        string           `json:"goal_id,omitempty"`
	IsArchived    bool             `json:"is_archived"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     *time.Time       `json:"updated_at,omitempty"`
	Completions   []CompletionView `json:"completions,omitempty"`
}

// CompletionView is the JSON shape of one period's completion record.
type CompletionView struct {
	CompletionID string     `json:"completion_id"`
	ActivityID   string     `json:"activity_id"`
	PeriodKey    string     `json:"period_key"`
	Completed    bool       `json:"completed"`
	Date         string     `json:"date"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// RateView is a completion count with its ratio.
type RateView struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Pending   int     `json:"pending"`
	Ratio     float64 `json:"ratio"`
}

// DueResponse is the due-set of one date.
type DueResponse struct {
	Date       string         `json:"date"`
	Activities []ActivityView `json:"activities"`
	Rate       RateView       `json:"rate"`
}

// GroupView is one frequency section of a view.
type GroupView struct {
	Frequency  string         `json:"frequency"`
	Label      string         `json:"label"`
	Activities []ActivityView `json:"activities"`
}

// ViewResponse is the grouped list and native completion rate of a view window.
type ViewResponse struct {
	View   string      `json:"view"`
	Date   string      `json:"date"`
	Groups []GroupView `json:"groups"`
	Rate   RateView    `json:"rate"`
}

// PeriodKeyResponse answers GET /v1/tracker/period-key.
type PeriodKeyResponse struct {
	Frequency string `json:"frequency"`
	Date      string `json:"date"`
	PeriodKey string `json:"period_key"`
}

func toActivityView(a tracker.Activity) ActivityView {
	days := make([]string, 0, len(a.ScheduledDays))
	for _, d := range a.ScheduledDays {
		days = append(days, string(d))
	}
	view := ActivityView{
		ActivityID:    a.ID,
		Title:         a.Title,
		FrequencyType: string(a.FrequencyType),
		ScheduledDays: days,
		TimeOfDay:     a.TimeOfDay,
		DomainID:      a.DomainID,
		GoalID:        a.GoalID,
		IsArchived:    a.IsArchived,
		CreatedAt:     a.CreatedAt,
	}
	for _, c := range a.Completions {
		view.Completions = append(view.Completions, toCompletionView(c))
	}
	return view
}

func toAggregateView(agg domain.ActivityAggregate) ActivityView {
	view := toActivityView(agg.Activity)
	if !agg.UpdatedAt.IsZero() {
		updated := agg.UpdatedAt
		view.UpdatedAt = &updated
	}
	return view
}

func toActivityViews(activities []tracker.Activity) []ActivityView {
	out := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		out = append(out, toActivityView(a))
	}
	return out
}

func toCompletionView(c tracker.Completion) CompletionView {
	return CompletionView{
		CompletionID: c.ID,
		ActivityID:   c.ActivityID,
		PeriodKey:    c.PeriodKey,
		Completed:    c.Completed,
		Date:         c.Date.String(),
		CompletedAt:  c.CompletedAt,
		Notes:        c.Notes,
	}
}

func toRateView(r tracker.Rate) RateView {
	return RateView{Completed: r.Completed, Total: r.Total, Pending: r.Total - r.Completed, Ratio: r.Ratio()}
}

func toViewRateView(r tracker.ViewRate) RateView {
	return RateView{Completed: r.Completed, Total: r.Total, Pending: r.Pending, Ratio: r.Ratio()}
}

func toViewResponse(v tracker.View) ViewResponse {
	groups := make([]GroupView, 0, len(v.Groups))
	for _, g := range v.Groups {
		groups = append(groups, GroupView{
			Frequency:  string(g.Frequency),
			Label:      g.Label,
			Activities: toActivityViews(g.Activities),
		})
	}
	return ViewResponse{
		View:   string(v.Mode),
		Date:   v.Date.String(),
		Groups: groups,
		Rate:   toViewRateView(v.Rate),
	}
}
