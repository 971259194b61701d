// Package domain defines the business workflows of the planner service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"example.com/planner/internal/observability"
	"example.com/planner/internal/tracker"
)

var (
	// ErrIdempotentReplay indicates an existing activity was found for the provided idempotency key.
	ErrIdempotentReplay = errors.New("activity already exists for idempotency key")
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrActivityArchived is returned when completing an archived activity.
	ErrActivityArchived = errors.New("activity is archived")
	// ErrValidation wraps input problems.
	ErrValidation = errors.New("validation failed")
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)


// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLogger overrides the logger used to report integrity problems.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLabels overrides the group headings of views.
func WithLabels(labels tracker.Labels) Option {
	return func(s *Service) {
		s.labels = tracker.DefaultLabels().Merge(labels)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates activity workflows.
type Service struct {
	repo   ActivityRepository
	logger *log.Logger
	labels tracker.Labels
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo ActivityRepository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: log.Default().WithPrefix("domain"),
		labels: tracker.DefaultLabels(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Labels returns the group headings in use.
func (s *Service) Labels() tracker.Labels {
	return s.labels
}

// CreateActivity handles idempotent create semantics.
func (s *Service) CreateActivity(ctx context.Context, input CreateActivityInput) (*ActivityAggregate, bool, error) {
	if input.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotency(ctx, input.OwnerID, input.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	freq, days, err := validateSchedule(input.FrequencyType, input.ScheduledDays)
	if err != nil {
		return nil, false, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, false, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if err := validateTimeOfDay(input.TimeOfDay); err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	aggregate := ActivityAggregate{
		Activity: tracker.Activity{
			ID:            uuid.NewString(),
			Title:         title,
			FrequencyType: freq,
			ScheduledDays: days,
			TimeOfDay:     strings.TrimSpace(input.TimeOfDay),
			DomainID:      strings.TrimSpace(input.DomainID),
			GoalID:        strings.TrimSpace(input.GoalID),
			CreatedAt:     now,
		},
		OwnerID:   input.OwnerID,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, aggregate, input.IdempotencyKey); err != nil {
		return nil, false, err
	}
	observability.RecordActivityPersisted(now)
	return &aggregate, false, nil
}

// UpdateActivity applies a partial edit. Completions recorded under a previous
// frequency are kept as they are and reported as orphaned.
func (s *Service) UpdateActivity(ctx context.Context, input UpdateActivityInput) (*ActivityAggregate, error) {
	agg, err := s.GetActivity(ctx, input.OwnerID, input.ActivityID)
	if err != nil {
		return nil, err
	}
	previous := agg.FrequencyType

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", ErrValidation)
		}
		agg.Title = title
	}
	rawFreq := string(agg.FrequencyType)
	if input.FrequencyType != nil {
		rawFreq = *input.FrequencyType
	}
	rawDays := dayStrings(agg.ScheduledDays)
	if input.ScheduledDays != nil {
		rawDays = *input.ScheduledDays
	} else if f, ok := tracker.ParseFrequency(rawFreq); ok && f != tracker.Weekly {
		rawDays = nil
	}
	freq, days, err := validateSchedule(rawFreq, rawDays)
	if err != nil {
		return nil, err
	}
	agg.FrequencyType = freq
	agg.ScheduledDays = days

	if input.TimeOfDay != nil {
		if err := validateTimeOfDay(*input.TimeOfDay); err != nil {
			return nil, err
		}
		agg.TimeOfDay = strings.TrimSpace(*input.TimeOfDay)
	}
	if input.DomainID != nil {
		agg.DomainID = strings.TrimSpace(*input.DomainID)
	}
	if input.GoalID != nil {
		agg.GoalID = strings.TrimSpace(*input.GoalID)
	}
	agg.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, *agg, previous); err != nil {
		return nil, err
	}
	if previous != freq {
		if orphans := tracker.OrphanedCompletions(agg.Activity); len(orphans) > 0 {
			s.logger.Warn("frequency changed with existing completions",
				"owner", agg.OwnerID, "activity", agg.ID, "from", previous, "to", freq, "orphaned", len(orphans))
		}
	}
	return agg, nil
}

// SetArchived archives or restores an activity.
func (s *Service) SetArchived(ctx context.Context, ownerID, activityID string, archived bool) (*ActivityAggregate, error) {
	agg, err := s.repo.SetArchived(ctx, ownerID, activityID, archived, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, ErrActivityNotFound
	}
	return agg, nil
}

// GetActivity fetches by ID, including completions.
func (s *Service) GetActivity(ctx context.Context, ownerID, activityID string) (*ActivityAggregate, error) {
	agg, err := s.repo.Get(ctx, ownerID, activityID)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, ErrActivityNotFound
	}
	return agg, nil
}

// ListActivities fetches activities with cursor pagination.
func (s *Service) ListActivities(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]ActivityAggregate, *Cursor, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListByOwner(ctx, ownerID, cursor, limit)
}

// ToggleCompletion records the completion state of the activity's period containing
// input.Date. At most one record exists per (activity, period key).
func (s *Service) ToggleCompletion(ctx context.Context, input ToggleCompletionInput) (tracker.Completion, error) {
	if input.Date.IsZero() {
		return tracker.Completion{}, fmt.Errorf("%w: date is required", ErrValidation)
	}
	agg, err := s.GetActivity(ctx, input.OwnerID, input.ActivityID)
	if err != nil {
		return tracker.Completion{}, err
	}
	if agg.IsArchived {
		return tracker.Completion{}, ErrActivityArchived
	}

	completion := tracker.NewCompletion(agg.Activity, input.Date, input.Completed, s.now(), strings.TrimSpace(input.Notes))
	if existing, ok := tracker.FindCompletion(agg.Activity, completion.PeriodKey); ok {
		completion.ID = existing.ID
	} else {
		completion.ID = uuid.NewString()
	}

	stored, err := s.repo.UpsertCompletion(ctx, input.OwnerID, completion)
	if err != nil {
		return tracker.Completion{}, err
	}
	observability.RecordCompletionToggled(agg.Frequency(), stored.Completed)
	return stored, nil
}

// Due returns the due-set for date with its completion rate.
func (s *Service) Due(ctx context.Context, ownerID string, date tracker.Date, filter tracker.Filter) (DueResult, error) {
	snapshot, err := s.snapshot(ctx, ownerID)
	if err != nil {
		return DueResult{}, err
	}
	due := snapshot.Due(date, filter)
	return DueResult{Date: date, Activities: due, Rate: tracker.CompletionRate(due, date)}, nil
}

// View returns the grouped activities and native completion rate for a view window.
func (s *Service) View(ctx context.Context, ownerID string, mode tracker.ViewMode, ref tracker.Date, filter tracker.Filter) (tracker.View, error) {
	snapshot, err := s.snapshot(ctx, ownerID)
	if err != nil {
		return tracker.View{}, err
	}
	view := snapshot.View(mode, ref, filter, s.labels)
	observability.RecordViewRate(mode, view.Rate)
	return view, nil
}

func (s *Service) snapshot(ctx context.Context, ownerID string) (*tracker.Snapshot, error) {
	aggregates, err := s.repo.Snapshot(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	snapshot := &tracker.Snapshot{Activities: Activities(aggregates)}
	s.reportIntegrity(ownerID, snapshot.Activities)
	return snapshot, nil
}

// reportIntegrity flags data problems the engine tolerates.
func (s *Service) reportIntegrity(ownerID string, activities []tracker.Activity) {
	for _, dup := range tracker.DuplicateCompletions(activities) {
		s.logger.Warn("duplicate completions for period; using first match",
			"owner", ownerID, "activity", dup.ActivityID, "period_key", dup.PeriodKey, "count", dup.Count)
		observability.RecordDuplicateCompletion()
	}
	orphaned := 0
	for _, a := range activities {
		orphaned += len(tracker.OrphanedCompletions(a))
	}
	if orphaned > 0 {
		s.logger.Debug("completions recorded under a previous frequency", "owner", ownerID, "count", orphaned)
	}
}

func validateSchedule(rawFreq string, rawDays []string) (tracker.Frequency, []tracker.DayCode, error) {
	freq, ok := tracker.ParseFrequency(rawFreq)
	if !ok {
		return "", nil, fmt.Errorf("%w: frequency_type must be one of DAILY, WEEKLY, MONTHLY, ONCE", ErrValidation)
	}
	days, err := tracker.ParseDayCodes(rawDays)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(days) > 0 && freq != tracker.Weekly {
		return "", nil, fmt.Errorf("%w: scheduled_days only applies to WEEKLY activities", ErrValidation)
	}
	return freq, days, nil
}

func validateTimeOfDay(value string) error {
	if _, err := tracker.ParseTimeOfDay(value); err != nil {
		return fmt.Errorf("%w: time_of_day: %w", ErrValidation, err)
	}
	return nil
}

func dayStrings(days []tracker.DayCode) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, string(d))
	}
	return out
}
