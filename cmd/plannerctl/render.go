package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"example.com/planner/internal/tracker"
)

type styles struct {
	heading lipgloss.Style
	group   lipgloss.Style
	done    lipgloss.Style
	pending lipgloss.Style
	muted   lipgloss.Style
}

// colorEnabled reports whether w is a terminal that accepts ANSI styling.
func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newStyles(plain bool) styles {
	if plain {
		s := lipgloss.NewStyle()
		return styles{heading: s, group: s, done: s, pending: s, muted: s}
	}
	return styles{
		heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")),
		group:   lipgloss.NewStyle().Bold(true).Underline(true),
		done:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		pending: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

func renderDue(w io.Writer, st styles, date tracker.Date, due []tracker.Activity, rate tracker.Rate) {
	fmt.Fprintln(w, st.heading.Render(fmt.Sprintf("Due %s", date)))
	if len(due) == 0 {
		fmt.Fprintln(w, st.muted.Render("  nothing due"))
	}
	for _, a := range due {
		fmt.Fprintln(w, activityLine(st, a, a.IsCompletedFor(date)))
	}
	fmt.Fprintln(w, rateLine(st, rate.Completed, rate.Total, rate.Ratio()))
}

func renderView(w io.Writer, st styles, view tracker.View) {
	fmt.Fprintln(w, st.heading.Render(fmt.Sprintf("%s view · %s", view.Mode, view.Date)))
	if len(view.Groups) == 0 {
		fmt.Fprintln(w, st.muted.Render("  no activities"))
	}
	for _, g := range view.Groups {
		fmt.Fprintln(w, st.group.Render(g.Label))
		for _, a := range g.Activities {
			fmt.Fprintln(w, activityLine(st, a, a.IsCompletedFor(view.Date)))
		}
	}
	fmt.Fprintln(w, rateLine(st, view.Rate.Completed, view.Rate.Total, view.Rate.Ratio()))
}

func activityLine(st styles, a tracker.Activity, done bool) string {
	mark := st.pending.Render("[ ]")
	if done {
		mark = st.done.Render("[x]")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  %s %s", mark, a.Title)
	if a.TimeOfDay != "" {
		b.WriteString(" " + st.muted.Render(a.TimeOfDay))
	}
	if len(a.ScheduledDays) > 0 {
		days := make([]string, 0, len(a.ScheduledDays))
		for _, d := range a.ScheduledDays {
			days = append(days, string(d))
		}
		b.WriteString(" " + st.muted.Render(strings.Join(days, "")))
	}
	b.WriteString(" " + st.muted.Render("("+a.ID+")"))
	return b.String()
}

func rateLine(st styles, completed, total int, ratio float64) string {
	return st.heading.Render(fmt.Sprintf("%d/%d done (%.0f%%)", completed, total, ratio*100))
}
