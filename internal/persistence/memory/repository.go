// Package memory provides a map-backed activity repository for tests and demos.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"example.com/planner/internal/domain"
	"example.com/planner/internal/persistence"
	"example.com/planner/internal/tracker"
)

// Repository stores activities in memory. Safe for concurrent use.
type Repository struct {
	mu          sync.RWMutex
	activities  map[string]domain.ActivityAggregate
	idempotency map[string]string
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{
		activities:  make(map[string]domain.ActivityAggregate),
		idempotency: make(map[string]string),
	}
}

// Seed stores aggregates as given, completions included.
func (r *Repository) Seed(aggregates ...domain.ActivityAggregate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, agg := range aggregates {
		r.activities[agg.ID] = clone(agg)
	}
}

// FindByIdempotency implements domain.ActivityRepository.
func (r *Repository) FindByIdempotency(_ context.Context, ownerID, key string) (*domain.ActivityAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idempotency[ownerID+"|"+key]
	if !ok {
		return nil, nil
	}
	return r.lookup(ownerID, id), nil
}

// Create implements domain.ActivityRepository.
func (r *Repository) Create(_ context.Context, agg domain.ActivityAggregate, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key != "" {
		if _, exists := r.idempotency[agg.OwnerID+"|"+key]; exists {
			return domain.ErrIdempotentReplay
		}
		r.idempotency[agg.OwnerID+"|"+key] = agg.ID
	}
	r.activities[agg.ID] = clone(agg)
	return nil
}

// Update implements domain.ActivityRepository. Completions are left untouched.
func (r *Repository) Update(_ context.Context, agg domain.ActivityAggregate, _ tracker.Frequency) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.activities[agg.ID]
	if !ok || current.OwnerID != agg.OwnerID {
		return domain.ErrActivityNotFound
	}
	updated := clone(agg)
	updated.Completions = current.Completions
	updated.CreatedAt = current.CreatedAt
	r.activities[agg.ID] = updated
	return nil
}

// SetArchived implements domain.ActivityRepository.
func (r *Repository) SetArchived(_ context.Context, ownerID, activityID string, archived bool, at time.Time) (*domain.ActivityAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg, ok := r.activities[activityID]
	if !ok || agg.OwnerID != ownerID {
		return nil, nil
	}
	agg.IsArchived = archived
	agg.UpdatedAt = at
	r.activities[activityID] = agg
	out := clone(agg)
	return &out, nil
}

// Get implements domain.ActivityRepository.
func (r *Repository) Get(_ context.Context, ownerID, activityID string) (*domain.ActivityAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(ownerID, activityID), nil
}

// ListByOwner implements domain.ActivityRepository, ordered by (created_at, id).
func (r *Repository) ListByOwner(_ context.Context, ownerID string, cursor *domain.Cursor, limit int) ([]domain.ActivityAggregate, *domain.Cursor, error) {
	r.mu.RLock()
	all := r.ownedLocked(ownerID)
	r.mu.RUnlock()

	page := make([]domain.ActivityAggregate, 0, limit)
	for _, agg := range all {
		if !persistence.After(cursor, agg.CreatedAt, agg.ID) {
			continue
		}
		if len(page) == limit {
			last := page[len(page)-1]
			return page, &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
		}
		agg.Completions = nil
		page = append(page, agg)
	}
	return page, nil, nil
}

// Snapshot implements domain.ActivityRepository.
func (r *Repository) Snapshot(_ context.Context, ownerID string) ([]domain.ActivityAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownedLocked(ownerID), nil
}

// UpsertCompletion implements domain.ActivityRepository.
func (r *Repository) UpsertCompletion(_ context.Context, ownerID string, c tracker.Completion) (tracker.Completion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg, ok := r.activities[c.ActivityID]
	if !ok || agg.OwnerID != ownerID {
		return tracker.Completion{}, domain.ErrActivityNotFound
	}
	agg.Completions, _ = tracker.UpsertCompletion(agg.Completions, c)
	r.activities[c.ActivityID] = agg
	stored, _ := tracker.FindCompletion(agg.Activity, c.PeriodKey)
	return stored, nil
}

func (r *Repository) lookup(ownerID, activityID string) *domain.ActivityAggregate {
	agg, ok := r.activities[activityID]
	if !ok || agg.OwnerID != ownerID {
		return nil
	}
	out := clone(agg)
	return &out
}

func (r *Repository) ownedLocked(ownerID string) []domain.ActivityAggregate {
	out := make([]domain.ActivityAggregate, 0)
	for _, agg := range r.activities {
		if agg.OwnerID == ownerID {
			out = append(out, clone(agg))
		}
	}
	slices.SortFunc(out, func(a, b domain.ActivityAggregate) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func clone(agg domain.ActivityAggregate) domain.ActivityAggregate {
	agg.ScheduledDays = slices.Clone(agg.ScheduledDays)
	agg.Completions = slices.Clone(agg.Completions)
	return agg
}
