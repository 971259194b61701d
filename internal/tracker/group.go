package tracker

import (
	"slices"
	"strings"
)

// Group is one frequency section of a view.
type Group struct {
	Frequency  Frequency
	Label      string
	Activities []Activity
}

// GroupActivities buckets activities by frequency in canonical order, keeping only the
// frequencies the view includes. Empty groups are omitted. A nil labels map uses
// DefaultLabels.
func GroupActivities(activities []Activity, view ViewMode, labels Labels) []Group {
	if labels == nil {
		labels = DefaultLabels()
	}

	buckets := make(map[Frequency][]Activity, 4)
	for _, a := range activities {
		if a.IsArchived {
			continue
		}
		f := a.Frequency()
		buckets[f] = append(buckets[f], a)
	}

	groups := make([]Group, 0, len(buckets))
	for _, f := range Frequencies() {
		items := buckets[f]
		if len(items) == 0 || !view.Includes(f) {
			continue
		}
		SortActivities(items)
		groups = append(groups, Group{Frequency: f, Label: labels.Label(f), Activities: items})
	}
	return groups
}

// SortActivities orders activities in place by time of day, unset last, then oldest first.
func SortActivities(activities []Activity) {
	slices.SortStableFunc(activities, compareActivities)
}

func compareActivities(a, b Activity) int {
	switch {
	case a.TimeOfDay == "" && b.TimeOfDay != "":
		return 1
	case a.TimeOfDay != "" && b.TimeOfDay == "":
		return -1
	}
	if c := strings.Compare(a.TimeOfDay, b.TimeOfDay); c != 0 {
		return c
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}
