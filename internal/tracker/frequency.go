// Package tracker derives period keys, due-sets, completion rates and grouped
// display lists for recurring activities. Every function here is pure: callers
// hand in a snapshot and get fresh values back.
package tracker

import (
	"errors"
	"fmt"
	"strings"
)

// Frequency is how often an activity recurs.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Once    Frequency = "ONCE"
)

// Frequencies returns every frequency in canonical display order.
func Frequencies() []Frequency {
	return []Frequency{Daily, Weekly, Monthly, Once}
}

// ParseFrequency reports whether value names a known frequency.
func ParseFrequency(value string) (Frequency, bool) {
	switch f := Frequency(strings.ToUpper(strings.TrimSpace(value))); f {
	case Daily, Weekly, Monthly, Once:
		return f, true
	default:
		return "", false
	}
}

// NormalizeFrequency maps unknown values to Daily.
func NormalizeFrequency(value string) Frequency {
	if f, ok := ParseFrequency(value); ok {
		return f
	}
	return Daily
}

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	_, ok := ParseFrequency(string(f))
	return ok
}

// ViewMode selects the window a caller is looking at.
type ViewMode string

const (
	ViewDay   ViewMode = "day"
	ViewWeek  ViewMode = "week"
	ViewMonth ViewMode = "month"
	ViewOnce  ViewMode = "once"
)

// ErrUnknownView is returned by ParseViewMode for unsupported views.
var ErrUnknownView = errors.New("unknown view mode")

// ViewModes returns every view mode.
func ViewModes() []ViewMode {
	return []ViewMode{ViewDay, ViewWeek, ViewMonth, ViewOnce}
}

// ParseViewMode parses a view token.
func ParseViewMode(value string) (ViewMode, error) {
	switch v := ViewMode(strings.ToLower(strings.TrimSpace(value))); v {
	case ViewDay, ViewWeek, ViewMonth, ViewOnce:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownView, value)
	}
}

// NativeFrequency is the only frequency counted in the view's completion rate.
func (v ViewMode) NativeFrequency() Frequency {
	switch v {
	case ViewWeek:
		return Weekly
	case ViewMonth:
		return Monthly
	case ViewOnce:
		return Once
	case ViewDay:
		return Daily
	}
	return Daily
}

// IncludedFrequencies lists the frequencies displayed by the view, in display order.
// Non-native entries are carryover context.
func (v ViewMode) IncludedFrequencies() []Frequency {
	switch v {
	case ViewWeek:
		return []Frequency{Weekly, Monthly, Once}
	case ViewMonth:
		return []Frequency{Monthly, Once}
	case ViewOnce:
		return []Frequency{Once}
	case ViewDay:
		return Frequencies()
	}
	return Frequencies()
}

// Includes reports whether activities of f are shown in the view.
func (v ViewMode) Includes(f Frequency) bool {
	for _, candidate := range v.IncludedFrequencies() {
		if candidate == f {
			return true
		}
	}
	return false
}

// Labels maps frequencies to group headings.
type Labels map[Frequency]string

// DefaultLabels returns the Spanish headings existing consumers expect.
func DefaultLabels() Labels {
	return Labels{
		Daily:   "Diarias",
		Weekly:  "Semanales",
		Monthly: "Mensuales",
		Once:    "Única vez",
	}
}

// Label returns the heading for f, falling back to the default set.
func (l Labels) Label(f Frequency) string {
	if label, ok := l[f]; ok && label != "" {
		return label
	}
	return DefaultLabels()[f]
}

// Merge returns a copy of l with overrides applied on top.
func (l Labels) Merge(overrides Labels) Labels {
	out := make(Labels, len(l)+len(overrides))
	for f, label := range l {
		out[f] = label
	}
	for f, label := range overrides {
		if label != "" {
			out[f] = label
		}
	}
	return out
}
