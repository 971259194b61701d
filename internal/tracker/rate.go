package tracker

// Rate counts completed activities among a due-set.
type Rate struct {
	Completed int
	Total     int
}

// Ratio returns Completed/Total, or 0 when nothing is due.
func (r Rate) Ratio() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Completed) / float64(r.Total)
}

// ViewRate is the completion count of a view's native activities.
type ViewRate struct {
	Completed int
	Total     int
	Pending   int
}

// Ratio returns Completed/Total, or 0 when the view has no native activities.
func (r ViewRate) Ratio() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Completed) / float64(r.Total)
}

// CompletionRate counts how many of activities, already the due-set for date,
// have their period containing date marked done.
func CompletionRate(activities []Activity, date Date) Rate {
	var r Rate
	for _, a := range activities {
		r.Total++
		if a.IsCompletedFor(date) {
			r.Completed++
		}
	}
	return r
}

// CompletionRateForView counts only activities whose frequency is native to the view.
// Carryover activities of other frequencies never affect the result.
func CompletionRateForView(activities []Activity, view ViewMode, ref Date) ViewRate {
	native := view.NativeFrequency()
	key := PeriodKey(native, ref)

	var r ViewRate
	for _, a := range activities {
		if a.IsArchived || a.Frequency() != native {
			continue
		}
		r.Total++
		if c, ok := FindCompletion(a, key); ok && c.Completed {
			r.Completed++
		}
	}
	r.Pending = r.Total - r.Completed
	return r
}
