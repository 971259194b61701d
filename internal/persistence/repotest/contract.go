// Package repotest holds the behaviour every domain.ActivityRepository must share.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/planner/internal/domain"
	"example.com/planner/internal/tracker"
)

// Factory returns a fresh, empty repository for one subtest.
type Factory func(t *testing.T) domain.ActivityRepository

// Activity builds an aggregate for owner created at the given offset from a fixed base time.
func Activity(owner string, freq tracker.Frequency, offset time.Duration) domain.ActivityAggregate {
	created := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC).Add(offset)
	return domain.ActivityAggregate{
		Activity: tracker.Activity{
			ID:            uuid.NewString(),
			Title:         "activity " + string(freq),
			FrequencyType: freq,
			CreatedAt:     created,
		},
		OwnerID:   owner,
		UpdatedAt: created,
	}
}

// Run exercises the repository contract.
func Run(t *testing.T, newRepo Factory) {
	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		agg := Activity("owner-a", tracker.Weekly, 0)
		agg.ScheduledDays = []tracker.DayCode{tracker.Monday, tracker.Friday}
		agg.TimeOfDay = "07:30"
		agg.DomainID = "health"
		require.NoError(t, repo.Create(ctx, agg, "key-1"))

		got, err := repo.Get(ctx, "owner-a", agg.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, agg.Title, got.Title)
		require.Equal(t, tracker.Weekly, got.FrequencyType)
		require.Equal(t, []tracker.DayCode{tracker.Monday, tracker.Friday}, got.ScheduledDays)
		require.Equal(t, "07:30", got.TimeOfDay)
		require.Equal(t, "health", got.DomainID)
		require.True(t, agg.CreatedAt.Equal(got.CreatedAt))

		other, err := repo.Get(ctx, "owner-b", agg.ID)
		require.NoError(t, err)
		require.Nil(t, other)

		replay, err := repo.FindByIdempotency(ctx, "owner-a", "key-1")
		require.NoError(t, err)
		require.NotNil(t, replay)
		require.Equal(t, agg.ID, replay.ID)

		missing, err := repo.FindByIdempotency(ctx, "owner-b", "key-1")
		require.NoError(t, err)
		require.Nil(t, missing)
	})

	t.Run("update keeps completions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		agg := Activity("owner-a", tracker.Daily, 0)
		require.NoError(t, repo.Create(ctx, agg, ""))
		_, err := repo.UpsertCompletion(ctx, "owner-a", completion(agg, "2024-01-15", true))
		require.NoError(t, err)

		agg.Title = "renamed"
		agg.FrequencyType = tracker.Weekly
		require.NoError(t, repo.Update(ctx, agg, tracker.Daily))

		got, err := repo.Get(ctx, "owner-a", agg.ID)
		require.NoError(t, err)
		require.Equal(t, "renamed", got.Title)
		require.Equal(t, tracker.Weekly, got.FrequencyType)
		require.Len(t, got.Completions, 1)
		require.Equal(t, "2024-01-15", got.Completions[0].PeriodKey)

		agg.OwnerID = "owner-b"
		require.ErrorIs(t, repo.Update(ctx, agg, tracker.Weekly), domain.ErrActivityNotFound)
	})

	t.Run("archive", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		agg := Activity("owner-a", tracker.Monthly, 0)
		require.NoError(t, repo.Create(ctx, agg, ""))

		archived, err := repo.SetArchived(ctx, "owner-a", agg.ID, true, agg.CreatedAt.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, archived.IsArchived)

		missing, err := repo.SetArchived(ctx, "owner-b", agg.ID, true, time.Now())
		require.NoError(t, err)
		require.Nil(t, missing)
	})

	t.Run("list pages by created_at then id", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		var ids []string
		for i := 0; i < 5; i++ {
			agg := Activity("owner-a", tracker.Daily, time.Duration(i)*time.Minute)
			require.NoError(t, repo.Create(ctx, agg, ""))
			ids = append(ids, agg.ID)
		}
		require.NoError(t, repo.Create(ctx, Activity("owner-b", tracker.Daily, 0), ""))

		first, next, err := repo.ListByOwner(ctx, "owner-a", nil, 2)
		require.NoError(t, err)
		require.Len(t, first, 2)
		require.NotNil(t, next)
		require.Equal(t, ids[:2], []string{first[0].ID, first[1].ID})

		second, next, err := repo.ListByOwner(ctx, "owner-a", next, 2)
		require.NoError(t, err)
		require.Equal(t, ids[2:4], []string{second[0].ID, second[1].ID})

		last, next, err := repo.ListByOwner(ctx, "owner-a", next, 2)
		require.NoError(t, err)
		require.Len(t, last, 1)
		require.Equal(t, ids[4], last[0].ID)
		require.Nil(t, next)
	})

	t.Run("completion upsert keeps one record per period", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		agg := Activity("owner-a", tracker.Weekly, 0)
		require.NoError(t, repo.Create(ctx, agg, ""))

		monday := completion(agg, "2024-01-15", true)
		stored, err := repo.UpsertCompletion(ctx, "owner-a", monday)
		require.NoError(t, err)
		require.Equal(t, "2024-W03", stored.PeriodKey)

		friday := completion(agg, "2024-01-19", false)
		friday.ID = uuid.NewString()
		again, err := repo.UpsertCompletion(ctx, "owner-a", friday)
		require.NoError(t, err)
		require.Equal(t, stored.ID, again.ID)
		require.False(t, again.Completed)

		snapshot, err := repo.Snapshot(ctx, "owner-a")
		require.NoError(t, err)
		require.Len(t, snapshot, 1)
		require.Len(t, snapshot[0].Completions, 1)
		require.False(t, snapshot[0].Completions[0].Completed)
		require.Equal(t, "2024-01-19", snapshot[0].Completions[0].Date.String())
		require.Nil(t, snapshot[0].Completions[0].CompletedAt)

		_, err = repo.UpsertCompletion(ctx, "owner-b", monday)
		require.ErrorIs(t, err, domain.ErrActivityNotFound)
	})

	t.Run("snapshot is scoped to owner", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		mine := Activity("owner-a", tracker.Once, 0)
		theirs := Activity("owner-b", tracker.Once, 0)
		require.NoError(t, repo.Create(ctx, mine, ""))
		require.NoError(t, repo.Create(ctx, theirs, ""))
		_, err := repo.UpsertCompletion(ctx, "owner-a", completion(mine, "2024-03-01", true))
		require.NoError(t, err)

		snapshot, err := repo.Snapshot(ctx, "owner-a")
		require.NoError(t, err)
		require.Len(t, snapshot, 1)
		require.Equal(t, mine.ID, snapshot[0].ID)
		require.Equal(t, tracker.OncePeriodKey, snapshot[0].Completions[0].PeriodKey)
		require.NotNil(t, snapshot[0].Completions[0].CompletedAt)
	})
}

func completion(agg domain.ActivityAggregate, date string, done bool) tracker.Completion {
	at := time.Date(2024, time.January, 20, 18, 0, 0, 0, time.UTC)
	c := tracker.NewCompletion(agg.Activity, tracker.MustParseDate(date), done, at, "")
	c.ID = uuid.NewString()
	return c
}
