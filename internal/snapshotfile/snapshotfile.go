// Package snapshotfile reads and writes an owner's planner as a JSON document,
// the offline format used by plannerctl.
package snapshotfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"example.com/planner/internal/tracker"
)

// Version is written to every document.
const Version = 1

type document struct {
	Version    int        `json:"version"`
	Activities []activity `json:"activities"`
}

type activity struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	FrequencyType string       `json:"frequency_type"`
	ScheduledDays []string     `json:"scheduled_days,omitempty"`
	TimeOfDay     string       `json:"time_of_day,omitempty"`
	DomainID      string       `json:"domain_id,omitempty"`
	GoalID        string       `json:"goal_id,omitempty"`
	IsArchived    bool         `json:"is_archived,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	Completions   []completion `json:"completions,omitempty"`
}

type completion struct {
	ID          string       `json:"id"`
	PeriodKey   string       `json:"period_key"`
	Completed   bool         `json:"completed"`
	Date        tracker.Date `json:"date"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Notes       string       `json:"notes,omitempty"`
}

// Load reads the snapshot at path. A missing file is an empty snapshot.
func Load(path string) (*tracker.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &tracker.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(raw)
}

// Decode parses a snapshot document. Frequencies are kept as written; the engine
// treats unknown ones with the daily rule.
func Decode(raw []byte) (*tracker.Snapshot, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Version > Version {
		return nil, fmt.Errorf("decode snapshot: unsupported version %d", doc.Version)
	}

	out := &tracker.Snapshot{Activities: make([]tracker.Activity, 0, len(doc.Activities))}
	for _, a := range doc.Activities {
		days, err := tracker.ParseDayCodes(a.ScheduledDays)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot: activity %s: %w", a.ID, err)
		}
		timeOfDay, err := tracker.ParseTimeOfDay(a.TimeOfDay)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot: activity %s: %w", a.ID, err)
		}
		act := tracker.Activity{
			ID:            a.ID,
			Title:         a.Title,
			FrequencyType: tracker.Frequency(a.FrequencyType),
			ScheduledDays: days,
			TimeOfDay:     timeOfDay,
			DomainID:      a.DomainID,
			GoalID:        a.GoalID,
			IsArchived:    a.IsArchived,
			CreatedAt:     a.CreatedAt,
		}
		for _, c := range a.Completions {
			act.Completions = append(act.Completions, tracker.Completion{
				ID:          c.ID,
				ActivityID:  a.ID,
				PeriodKey:   c.PeriodKey,
				Completed:   c.Completed,
				Date:        c.Date,
				CompletedAt: c.CompletedAt,
				Notes:       c.Notes,
			})
		}
		out.Activities = append(out.Activities, act)
	}
	return out, nil
}

// Encode renders the snapshot as an indented document.
func Encode(s *tracker.Snapshot) ([]byte, error) {
	doc := document{Version: Version, Activities: make([]activity, 0, len(s.Activities))}
	for _, a := range s.Activities {
		out := activity{
			ID:            a.ID,
			Title:         a.Title,
			FrequencyType: string(a.FrequencyType),
			TimeOfDay:     a.TimeOfDay,
			DomainID:      a.DomainID,
			GoalID:        a.GoalID,
			IsArchived:    a.IsArchived,
			CreatedAt:     a.CreatedAt,
		}
		for _, d := range a.ScheduledDays {
			out.ScheduledDays = append(out.ScheduledDays, string(d))
		}
		for _, c := range a.Completions {
			out.Completions = append(out.Completions, completion{
				ID:          c.ID,
				PeriodKey:   c.PeriodKey,
				Completed:   c.Completed,
				Date:        c.Date,
				CompletedAt: c.CompletedAt,
				Notes:       c.Notes,
			})
		}
		doc.Activities = append(doc.Activities, out)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Save writes the snapshot to path through a temporary file in the same directory.
func Save(path string, s *tracker.Snapshot) error {
	raw, err := Encode(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".planner-*.json")
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
