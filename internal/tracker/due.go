package tracker

// Filter narrows a due-set by association. Empty fields do not constrain.
type Filter struct {
	DomainID string
	GoalID   string
}

// Matches reports whether a passes every set field of the filter.
func (f Filter) Matches(a Activity) bool {
	if f.DomainID != "" && a.DomainID != f.DomainID {
		return false
	}
	if f.GoalID != "" && a.GoalID != f.GoalID {
		return false
	}
	return true
}

// DueActivities returns the unarchived activities due on date that pass the filter.
func DueActivities(activities []Activity, date Date, filter Filter) []Activity {
	out := make([]Activity, 0, len(activities))
	for _, a := range activities {
		if a.IsArchived || !filter.Matches(a) {
			continue
		}
		if isDueOn(a, date) {
			out = append(out, a)
		}
	}
	return out
}

// isDueOn applies the single-day rule. Monthly and one-off activities are due on any
// queried date; narrowing them is left to the caller's window.
func isDueOn(a Activity, date Date) bool {
	switch a.Frequency() {
	case Weekly:
		return scheduledOn(a.ScheduledDays, date)
	case Daily, Monthly, Once:
		return true
	}
	return true
}

func scheduledOn(days []DayCode, date Date) bool {
	if len(days) == 0 {
		return true
	}
	code := date.DayCode()
	for _, d := range days {
		if d == code {
			return true
		}
	}
	return false
}

// VisibleActivities returns the unarchived, filtered activities a view displays for ref.
// The day view is exactly the due-set of ref. Wider views show every activity of an
// included frequency, since each occupies one period overlapping the window.
func VisibleActivities(activities []Activity, view ViewMode, ref Date, filter Filter) []Activity {
	if view == ViewDay {
		return DueActivities(activities, ref, filter)
	}
	out := make([]Activity, 0, len(activities))
	for _, a := range activities {
		if a.IsArchived || !filter.Matches(a) {
			continue
		}
		if view.Includes(a.Frequency()) {
			out = append(out, a)
		}
	}
	return out
}
