// Package postgres persists activities and completions in Postgres and records
// their change events in the outbox within the same transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/planner/internal/domain"
	"example.com/planner/internal/outbox"
	"example.com/planner/internal/tracker"
	"example.com/planner/pkg/events"
)

const uniqueViolation = "23505"

const activityColumns = `activity_id::text, owner_id, title, frequency_type, scheduled_days, time_of_day, domain_id, goal_id, is_archived, created_at, updated_at`

const completionColumns = `completion_id::text, activity_id::text, period_key, completed, date, completed_at, notes`

// Repository provides Postgres-backed persistence for activities and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// withOwner runs fn in a transaction scoped to ownerID for row-level security.
func (r *Repository) withOwner(ctx context.Context, ownerID string, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.owner_id', $1, true)", ownerID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindByIdempotency checks if an activity already exists for the supplied idempotency key.
func (r *Repository) FindByIdempotency(ctx context.Context, ownerID, idempotencyKey string) (*domain.ActivityAggregate, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	var out *domain.ActivityAggregate
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE owner_id=$1 AND idempotency_key=$2`, ownerID, idempotencyKey)
		agg, err := scanActivity(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		out = &agg
		return nil
	})
	return out, err
}

// Create persists the aggregate and records the activity.created event inside a single transaction.
func (r *Repository) Create(ctx context.Context, agg domain.ActivityAggregate, idempotencyKey string) error {
	return r.withOwner(ctx, agg.OwnerID, func(tx pgx.Tx) error {
		const insert = `INSERT INTO activities (activity_id, owner_id, title, frequency_type, scheduled_days, time_of_day, domain_id, goal_id, is_archived, idempotency_key, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
		_, err := tx.Exec(ctx, insert,
			agg.ID,
			agg.OwnerID,
			agg.Title,
			string(agg.FrequencyType),
			dayStrings(agg.ScheduledDays),
			agg.TimeOfDay,
			agg.DomainID,
			agg.GoalID,
			agg.IsArchived,
			nullIfEmpty(idempotencyKey),
			agg.CreatedAt,
			agg.UpdatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "activities_owner_idempotency" {
				return domain.ErrIdempotentReplay
			}
			return err
		}

		return outbox.Enqueue(ctx, tx, outbox.Event{
			OwnerID:       agg.OwnerID,
			AggregateType: "activity",
			AggregateID:   agg.ID,
			EventType:     events.TypeActivityCreated,
			PartitionKey:  partitionKey(agg.OwnerID, agg.ID),
			DedupeKey:     fmt.Sprintf("%s:%s", agg.ID, events.TypeActivityCreated),
			Payload: events.ActivityCreated{
				ActivityID:    agg.ID,
				OwnerID:       agg.OwnerID,
				Title:         agg.Title,
				FrequencyType: string(agg.FrequencyType),
				ScheduledDays: dayStrings(agg.ScheduledDays),
				TimeOfDay:     agg.TimeOfDay,
				DomainID:      agg.DomainID,
				GoalID:        agg.GoalID,
				CreatedAt:     agg.CreatedAt,
			},
		})
	})
}

// Update writes the edited fields and records activity.updated. Completions are untouched.
func (r *Repository) Update(ctx context.Context, agg domain.ActivityAggregate, previous tracker.Frequency) error {
	return r.withOwner(ctx, agg.OwnerID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE activities
            SET title=$1, frequency_type=$2, scheduled_days=$3, time_of_day=$4, domain_id=$5, goal_id=$6, updated_at=$7
            WHERE activity_id=$8 AND owner_id=$9`,
			agg.Title, string(agg.FrequencyType), dayStrings(agg.ScheduledDays), agg.TimeOfDay,
			agg.DomainID, agg.GoalID, agg.UpdatedAt, agg.ID, agg.OwnerID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrActivityNotFound
		}

		payload := events.ActivityUpdated{
			ActivityID:    agg.ID,
			OwnerID:       agg.OwnerID,
			Title:         agg.Title,
			FrequencyType: string(agg.FrequencyType),
			ScheduledDays: dayStrings(agg.ScheduledDays),
			TimeOfDay:     agg.TimeOfDay,
			DomainID:      agg.DomainID,
			GoalID:        agg.GoalID,
			UpdatedAt:     agg.UpdatedAt,
		}
		if previous != agg.FrequencyType {
			payload.PreviousFrequency = string(previous)
		}
		return outbox.Enqueue(ctx, tx, outbox.Event{
			OwnerID:       agg.OwnerID,
			AggregateType: "activity",
			AggregateID:   agg.ID,
			EventType:     events.TypeActivityUpdated,
			PartitionKey:  partitionKey(agg.OwnerID, agg.ID),
			Payload:       payload,
		})
	})
}

// SetArchived flips the archive flag and records activity.archived.
func (r *Repository) SetArchived(ctx context.Context, ownerID, activityID string, archived bool, at time.Time) (*domain.ActivityAggregate, error) {
	var out *domain.ActivityAggregate
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `UPDATE activities SET is_archived=$1, updated_at=$2
            WHERE activity_id=$3 AND owner_id=$4
            RETURNING `+activityColumns, archived, at, activityID, ownerID)
		agg, err := scanActivity(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		out = &agg
		return outbox.Enqueue(ctx, tx, outbox.Event{
			OwnerID:       ownerID,
			AggregateType: "activity",
			AggregateID:   activityID,
			EventType:     events.TypeActivityArchived,
			PartitionKey:  partitionKey(ownerID, activityID),
			Payload: events.ActivityArchived{
				ActivityID: activityID,
				OwnerID:    ownerID,
				Archived:   archived,
				OccurredAt: at,
			},
		})
	})
	return out, err
}

// Get retrieves an activity by ID with its completions.
func (r *Repository) Get(ctx context.Context, ownerID, activityID string) (*domain.ActivityAggregate, error) {
	var out *domain.ActivityAggregate
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE owner_id=$1 AND activity_id=$2`, ownerID, activityID)
		agg, err := scanActivity(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		byActivity, err := loadCompletions(ctx, tx, `SELECT `+completionColumns+` FROM activity_completions
            WHERE owner_id=$1 AND activity_id=$2 ORDER BY recorded_at, completion_id`, ownerID, activityID)
		if err != nil {
			return err
		}
		agg.Completions = byActivity[agg.ID]
		out = &agg
		return nil
	})
	return out, err
}

// ListByOwner returns activities ordered by (created_at, activity_id) without completions.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string, cursor *domain.Cursor, limit int) ([]domain.ActivityAggregate, *domain.Cursor, error) {
	args := []any{ownerID, limit + 1}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE owner_id=$1`
	if cursor != nil {
		query += ` AND (created_at, activity_id) > ($3, $4::uuid)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at, activity_id LIMIT $2`

	results := make([]domain.ActivityAggregate, 0, limit)
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			agg, err := scanActivity(rows)
			if err != nil {
				return err
			}
			results = append(results, agg)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	if len(results) > limit {
		results = results[:limit]
		last := results[len(results)-1]
		return results, &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return results, nil, nil
}

// Snapshot loads every activity of the owner with its completions.
func (r *Repository) Snapshot(ctx context.Context, ownerID string) ([]domain.ActivityAggregate, error) {
	var out []domain.ActivityAggregate
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+activityColumns+` FROM activities WHERE owner_id=$1 ORDER BY created_at, activity_id`, ownerID)
		if err != nil {
			return err
		}
		for rows.Next() {
			agg, err := scanActivity(rows)
			if err != nil {
				rows.Close()
				return err
			}
			out = append(out, agg)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		byActivity, err := loadCompletions(ctx, tx, `SELECT `+completionColumns+` FROM activity_completions
            WHERE owner_id=$1 ORDER BY recorded_at, completion_id`, ownerID)
		if err != nil {
			return err
		}
		for i := range out {
			out[i].Completions = byActivity[out[i].ID]
		}
		return nil
	})
	return out, err
}

// UpsertCompletion stores the single completion of (activity, period key) and records completion.toggled.
func (r *Repository) UpsertCompletion(ctx context.Context, ownerID string, c tracker.Completion) (tracker.Completion, error) {
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM activities WHERE activity_id=$1 AND owner_id=$2)`, c.ActivityID, ownerID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrActivityNotFound
		}

		row := tx.QueryRow(ctx, `INSERT INTO activity_completions (completion_id, activity_id, owner_id, period_key, completed, date, completed_at, notes)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
            ON CONFLICT (activity_id, period_key) DO UPDATE SET
                completed = EXCLUDED.completed,
                date = EXCLUDED.date,
                completed_at = EXCLUDED.completed_at,
                notes = EXCLUDED.notes
            RETURNING completion_id::text`,
			c.ID, c.ActivityID, ownerID, c.PeriodKey, c.Completed, c.Date.Time(), c.CompletedAt, c.Notes,
		)
		if err := row.Scan(&c.ID); err != nil {
			return err
		}

		return outbox.Enqueue(ctx, tx, outbox.Event{
			OwnerID:       ownerID,
			AggregateType: "completion",
			AggregateID:   c.ID,
			EventType:     events.TypeCompletionToggled,
			PartitionKey:  partitionKey(ownerID, c.ActivityID),
			Payload: events.CompletionToggled{
				CompletionID: c.ID,
				ActivityID:   c.ActivityID,
				OwnerID:      ownerID,
				PeriodKey:    c.PeriodKey,
				Date:         c.Date.String(),
				Completed:    c.Completed,
				CompletedAt:  c.CompletedAt,
				OccurredAt:   time.Now().UTC(),
			},
		})
	})
	if err != nil {
		return tracker.Completion{}, err
	}
	return c, nil
}

func loadCompletions(ctx context.Context, tx pgx.Tx, query string, args ...any) (map[string][]tracker.Completion, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]tracker.Completion)
	for rows.Next() {
		var (
			c    tracker.Completion
			date time.Time
		)
		if err := rows.Scan(&c.ID, &c.ActivityID, &c.PeriodKey, &c.Completed, &date, &c.CompletedAt, &c.Notes); err != nil {
			return nil, err
		}
		c.Date = tracker.DateOf(date)
		out[c.ActivityID] = append(out[c.ActivityID], c)
	}
	return out, rows.Err()
}

func scanActivity(row pgx.Row) (domain.ActivityAggregate, error) {
	var (
		agg  domain.ActivityAggregate
		freq string
		days []string
	)
	if err := row.Scan(&agg.ID, &agg.OwnerID, &agg.Title, &freq, &days, &agg.TimeOfDay, &agg.DomainID,
		&agg.GoalID, &agg.IsArchived, &agg.CreatedAt, &agg.UpdatedAt); err != nil {
		return domain.ActivityAggregate{}, err
	}
	agg.FrequencyType = tracker.Frequency(freq)
	for _, d := range days {
		agg.ScheduledDays = append(agg.ScheduledDays, tracker.DayCode(d))
	}
	agg.CreatedAt = agg.CreatedAt.UTC()
	agg.UpdatedAt = agg.UpdatedAt.UTC()
	return agg, nil
}

func partitionKey(ownerID, activityID string) string {
	return fmt.Sprintf("%s:%s", ownerID, activityID)
}

func dayStrings(days []tracker.DayCode) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, string(d))
	}
	return out
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
