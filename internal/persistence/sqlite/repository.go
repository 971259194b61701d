// Package sqlite implements the activity repository on a local SQLite file for
// single-user mode. Events are not published from this driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"example.com/planner/internal/domain"
	"example.com/planner/internal/tracker"
)

const driverName = "sqlite"

// tsLayout is fixed width so text comparison orders like time.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

const activityColumns = `id, owner_id, title, frequency_type, scheduled_days, time_of_day, domain_id, goal_id, is_archived, created_at, updated_at`

// Repository stores activities in SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			frequency_type TEXT NOT NULL,
			scheduled_days TEXT NOT NULL DEFAULT '[]',
			time_of_day TEXT NOT NULL DEFAULT '',
			domain_id TEXT NOT NULL DEFAULT '',
			goal_id TEXT NOT NULL DEFAULT '',
			is_archived INTEGER NOT NULL DEFAULT 0,
			idempotency_key TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS activities_owner_idempotency
			ON activities(owner_id, idempotency_key) WHERE idempotency_key IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS activities_owner_created ON activities(owner_id, created_at, id);`,
		`CREATE TABLE IF NOT EXISTS activity_completions (
			id TEXT PRIMARY KEY,
			activity_id TEXT NOT NULL,
			period_key TEXT NOT NULL,
			completed INTEGER NOT NULL,
			date TEXT NOT NULL,
			completed_at TEXT,
			notes TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(activity_id) REFERENCES activities(id) ON DELETE CASCADE,
			UNIQUE(activity_id, period_key)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// FindByIdempotency implements domain.ActivityRepository.
func (r *Repository) FindByIdempotency(ctx context.Context, ownerID, key string) (*domain.ActivityAggregate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE owner_id = ? AND idempotency_key = ?`, ownerID, key)
	agg, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

// Create implements domain.ActivityRepository.
func (r *Repository) Create(ctx context.Context, agg domain.ActivityAggregate, key string) error {
	days, err := json.Marshal(dayStrings(agg.ScheduledDays))
	if err != nil {
		return fmt.Errorf("encode scheduled_days: %w", err)
	}
	var idempotency any
	if key != "" {
		idempotency = key
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO activities (id, owner_id, title, frequency_type, scheduled_days, time_of_day, domain_id, goal_id, is_archived, idempotency_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agg.ID, agg.OwnerID, agg.Title, string(agg.FrequencyType), string(days), agg.TimeOfDay,
		agg.DomainID, agg.GoalID, agg.IsArchived, idempotency, formatTS(agg.CreatedAt), formatTS(agg.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotentReplay
		}
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// Update implements domain.ActivityRepository.
func (r *Repository) Update(ctx context.Context, agg domain.ActivityAggregate, _ tracker.Frequency) error {
	days, err := json.Marshal(dayStrings(agg.ScheduledDays))
	if err != nil {
		return fmt.Errorf("encode scheduled_days: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE activities
		SET title = ?, frequency_type = ?, scheduled_days = ?, time_of_day = ?, domain_id = ?, goal_id = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		agg.Title, string(agg.FrequencyType), string(days), agg.TimeOfDay, agg.DomainID, agg.GoalID,
		formatTS(agg.UpdatedAt), agg.ID, agg.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

// SetArchived implements domain.ActivityRepository.
func (r *Repository) SetArchived(ctx context.Context, ownerID, activityID string, archived bool, at time.Time) (*domain.ActivityAggregate, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE activities SET is_archived = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		archived, formatTS(at), activityID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("archive activity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, nil
	}
	return r.Get(ctx, ownerID, activityID)
}

// Get implements domain.ActivityRepository.
func (r *Repository) Get(ctx context.Context, ownerID, activityID string) (*domain.ActivityAggregate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = ? AND owner_id = ?`, activityID, ownerID)
	agg, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	completions, err := r.completions(ctx, `SELECT c.id, c.activity_id, c.period_key, c.completed, c.date, c.completed_at, c.notes
		FROM activity_completions c WHERE c.activity_id = ? ORDER BY c.rowid`, activityID)
	if err != nil {
		return nil, err
	}
	agg.Completions = completions[activityID]
	return &agg, nil
}

// ListByOwner implements domain.ActivityRepository.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string, cursor *domain.Cursor, limit int) ([]domain.ActivityAggregate, *domain.Cursor, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE owner_id = ?`
	args := []any{ownerID}
	if cursor != nil {
		ts := formatTS(cursor.CreatedAt)
		query += ` AND (created_at > ? OR (created_at = ? AND id > ?))`
		args = append(args, ts, ts, cursor.ID)
	}
	query += ` ORDER BY created_at, id LIMIT ?`
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ActivityAggregate, 0, limit)
	for rows.Next() {
		agg, err := scanActivity(rows)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(out) > limit {
		out = out[:limit]
		last := out[len(out)-1]
		return out, &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return out, nil, nil
}

// Snapshot implements domain.ActivityRepository.
func (r *Repository) Snapshot(ctx context.Context, ownerID string) ([]domain.ActivityAggregate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var out []domain.ActivityAggregate
	for rows.Next() {
		agg, err := scanActivity(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, agg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byActivity, err := r.completions(ctx, `SELECT c.id, c.activity_id, c.period_key, c.completed, c.date, c.completed_at, c.notes
		FROM activity_completions c JOIN activities a ON a.id = c.activity_id
		WHERE a.owner_id = ? ORDER BY c.rowid`, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Completions = byActivity[out[i].ID]
	}
	return out, nil
}

// UpsertCompletion implements domain.ActivityRepository.
func (r *Repository) UpsertCompletion(ctx context.Context, ownerID string, c tracker.Completion) (tracker.Completion, error) {
	var owned int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM activities WHERE id = ? AND owner_id = ?`, c.ActivityID, ownerID).Scan(&owned)
	if err != nil {
		return tracker.Completion{}, fmt.Errorf("check activity owner: %w", err)
	}
	if owned == 0 {
		return tracker.Completion{}, domain.ErrActivityNotFound
	}

	var completedAt any
	if c.CompletedAt != nil {
		completedAt = formatTS(*c.CompletedAt)
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO activity_completions (id, activity_id, period_key, completed, date, completed_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(activity_id, period_key) DO UPDATE SET
			completed = excluded.completed,
			date = excluded.date,
			completed_at = excluded.completed_at,
			notes = excluded.notes
		RETURNING id`,
		c.ID, c.ActivityID, c.PeriodKey, c.Completed, c.Date.String(), completedAt, c.Notes,
	).Scan(&c.ID)
	if err != nil {
		return tracker.Completion{}, fmt.Errorf("upsert completion: %w", err)
	}
	return c, nil
}

func (r *Repository) completions(ctx context.Context, query string, args ...any) (map[string][]tracker.Completion, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load completions: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]tracker.Completion)
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		out[c.ActivityID] = append(out[c.ActivityID], c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(s scanner) (domain.ActivityAggregate, error) {
	var (
		agg        domain.ActivityAggregate
		freq       string
		daysRaw    string
		createdRaw string
		updatedRaw string
	)
	err := s.Scan(&agg.ID, &agg.OwnerID, &agg.Title, &freq, &daysRaw, &agg.TimeOfDay, &agg.DomainID,
		&agg.GoalID, &agg.IsArchived, &createdRaw, &updatedRaw)
	if err != nil {
		return domain.ActivityAggregate{}, err
	}
	agg.FrequencyType = tracker.Frequency(freq)
	var days []string
	if strings.TrimSpace(daysRaw) != "" {
		if err := json.Unmarshal([]byte(daysRaw), &days); err != nil {
			return domain.ActivityAggregate{}, fmt.Errorf("decode scheduled_days: %w", err)
		}
	}
	for _, d := range days {
		agg.ScheduledDays = append(agg.ScheduledDays, tracker.DayCode(d))
	}
	if agg.CreatedAt, err = parseTS(createdRaw); err != nil {
		return domain.ActivityAggregate{}, fmt.Errorf("activity %s created_at: %w", agg.ID, err)
	}
	if agg.UpdatedAt, err = parseTS(updatedRaw); err != nil {
		return domain.ActivityAggregate{}, fmt.Errorf("activity %s updated_at: %w", agg.ID, err)
	}
	return agg, nil
}

func scanCompletion(s scanner) (tracker.Completion, error) {
	var (
		c            tracker.Completion
		dateRaw      string
		completedRaw sql.NullString
	)
	if err := s.Scan(&c.ID, &c.ActivityID, &c.PeriodKey, &c.Completed, &dateRaw, &completedRaw, &c.Notes); err != nil {
		return tracker.Completion{}, err
	}
	date, err := tracker.ParseDate(dateRaw)
	if err != nil {
		return tracker.Completion{}, fmt.Errorf("decode completion date: %w", err)
	}
	c.Date = date
	if completedRaw.Valid {
		ts, err := parseTS(completedRaw.String)
		if err != nil {
			return tracker.Completion{}, fmt.Errorf("completion %s completed_at: %w", c.ID, err)
		}
		c.CompletedAt = &ts
	}
	return c, nil
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(raw string) (time.Time, error) {
	return time.Parse(tsLayout, raw)
}

// isUniqueViolation reports a UNIQUE index conflict. The driver enables
// extended result codes, so the constraint kind is part of the code.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func dayStrings(days []tracker.DayCode) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, string(d))
	}
	return out
}
