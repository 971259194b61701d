package tracker

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownActivity is returned by Snapshot when an id is not present.
	ErrUnknownActivity = errors.New("activity not in snapshot")
	// ErrArchivedActivity is returned when toggling an archived activity.
	ErrArchivedActivity = errors.New("activity is archived")
)

// Snapshot holds one owner's activities with their completions. Hosts pass it
// around explicitly; nothing in this package keeps state between calls.
type Snapshot struct {
	Activities []Activity
}

// Find returns the activity with id.
func (s *Snapshot) Find(id string) (Activity, bool) {
	for _, a := range s.Activities {
		if a.ID == id {
			return a, true
		}
	}
	return Activity{}, false
}

// Toggle records the completion state of the activity's period containing date.
// The stored record for that period is updated in place and keeps its id; newID
// is used only when the period has no record yet. Archived activities are rejected.
func (s *Snapshot) Toggle(activityID string, date Date, completed bool, at time.Time, notes, newID string) (Completion, error) {
	for i := range s.Activities {
		a := s.Activities[i]
		if a.ID != activityID {
			continue
		}
		if a.IsArchived {
			return Completion{}, fmt.Errorf("%w: %s", ErrArchivedActivity, activityID)
		}
		c := NewCompletion(a, date, completed, at, notes)
		if existing, ok := FindCompletion(a, c.PeriodKey); ok {
			c.ID = existing.ID
		} else {
			c.ID = newID
		}
		s.Activities[i].Completions, _ = UpsertCompletion(a.Completions, c)
		return c, nil
	}
	return Completion{}, fmt.Errorf("%w: %s", ErrUnknownActivity, activityID)
}

// Due returns the due-set for date.
func (s *Snapshot) Due(date Date, filter Filter) []Activity {
	return DueActivities(s.Activities, date, filter)
}

// View is the grouped list and native completion rate of one view window.
type View struct {
	Mode   ViewMode
	Date   Date
	Groups []Group
	Rate   ViewRate
}

// View builds the grouped display list and completion rate for the window.
func (s *Snapshot) View(mode ViewMode, ref Date, filter Filter, labels Labels) View {
	visible := VisibleActivities(s.Activities, mode, ref, filter)
	return View{
		Mode:   mode,
		Date:   ref,
		Groups: GroupActivities(visible, mode, labels),
		Rate:   CompletionRateForView(visible, mode, ref),
	}
}
