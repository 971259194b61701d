package tracker

import "time"

// Activity is a recurring or one-off intention to act.
type Activity struct {
	ID            string
	Title         string
	FrequencyType Frequency
	ScheduledDays []DayCode
	TimeOfDay     string
	DomainID      string
	GoalID        string
	IsArchived    bool
	CreatedAt     time.Time
	Completions   []Completion
}

// Completion records whether one recurrence period of an activity was done.
type Completion struct {
	ID          string
	ActivityID  string
	PeriodKey   string
	Completed   bool
	Date        Date
	CompletedAt *time.Time
	Notes       string
}

// Frequency returns the activity's frequency with unknown values mapped to Daily.
func (a Activity) Frequency() Frequency {
	return NormalizeFrequency(string(a.FrequencyType))
}

// PeriodKeyFor returns the activity's period key for date.
func (a Activity) PeriodKeyFor(date Date) string {
	return PeriodKey(a.Frequency(), date)
}

// IsCompletedFor reports whether the period containing date is marked done.
func (a Activity) IsCompletedFor(date Date) bool {
	c, ok := FindCompletion(a, a.PeriodKeyFor(date))
	return ok && c.Completed
}

// FindCompletion returns the first completion of a with the given key.
// More than one match is an upstream integrity fault; see DuplicateCompletions.
func FindCompletion(a Activity, key string) (Completion, bool) {
	for _, c := range a.Completions {
		if c.PeriodKey == key {
			return c, true
		}
	}
	return Completion{}, false
}

// UpsertCompletion replaces the first completion matching c's activity and period key,
// or appends c when none exists. The input slice is not modified.
func UpsertCompletion(completions []Completion, c Completion) ([]Completion, bool) {
	out := make([]Completion, len(completions), len(completions)+1)
	copy(out, completions)
	for i := range out {
		if out[i].ActivityID == c.ActivityID && out[i].PeriodKey == c.PeriodKey {
			if c.ID == "" {
				c.ID = out[i].ID
			}
			out[i] = c
			return out, false
		}
	}
	return append(out, c), true
}

// NewCompletion builds the completion record for toggling a's occurrence on date.
func NewCompletion(a Activity, date Date, completed bool, at time.Time, notes string) Completion {
	c := Completion{
		ActivityID: a.ID,
		PeriodKey:  a.PeriodKeyFor(date),
		Completed:  completed,
		Date:       date,
		Notes:      notes,
	}
	if completed {
		ts := at.UTC()
		c.CompletedAt = &ts
	}
	return c
}

// Duplicate describes more than one completion stored for the same period.
type Duplicate struct {
	ActivityID string
	PeriodKey  string
	Count      int
}

// DuplicateCompletions reports every (activity, period key) pair stored more than once.
func DuplicateCompletions(activities []Activity) []Duplicate {
	var out []Duplicate
	for _, a := range activities {
		counts := make(map[string]int, len(a.Completions))
		order := make([]string, 0, len(a.Completions))
		for _, c := range a.Completions {
			if counts[c.PeriodKey] == 0 {
				order = append(order, c.PeriodKey)
			}
			counts[c.PeriodKey]++
		}
		for _, key := range order {
			if counts[key] > 1 {
				out = append(out, Duplicate{ActivityID: a.ID, PeriodKey: key, Count: counts[key]})
			}
		}
	}
	return out
}

// OrphanedCompletions returns completions whose key was produced under a different
// frequency than the activity has now. They are left in place and never counted.
func OrphanedCompletions(a Activity) []Completion {
	var out []Completion
	f := a.Frequency()
	for _, c := range a.Completions {
		if !KeyMatchesFrequency(f, c.PeriodKey) {
			out = append(out, c)
		}
	}
	return out
}
