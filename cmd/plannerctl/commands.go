package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"example.com/planner/internal/auth"
	"example.com/planner/internal/config"
	"example.com/planner/internal/snapshotfile"
	"example.com/planner/internal/tracker"
	authlib "example.com/planner/pkg/auth"
)

// now is replaced in tests.
var now = time.Now

func (o *rootOptions) refDate() (tracker.Date, error) {
	if strings.TrimSpace(o.date) == "" {
		return tracker.DateOf(now()), nil
	}
	return tracker.ParseDate(o.date)
}

func (o *rootOptions) loadSnapshot() (*tracker.Snapshot, error) {
	snap, err := snapshotfile.Load(o.file)
	if err != nil {
		return nil, err
	}
	for _, dup := range tracker.DuplicateCompletions(snap.Activities) {
		o.logger.Warn("duplicate completions for period; using first match",
			"activity", dup.ActivityID, "period_key", dup.PeriodKey, "count", dup.Count)
	}
	for _, a := range snap.Activities {
		if orphans := tracker.OrphanedCompletions(a); len(orphans) > 0 {
			o.logger.Debug("completions recorded under a previous frequency", "activity", a.ID, "count", len(orphans))
		}
	}
	return snap, nil
}

type filterFlags struct {
	domain string
	goal   string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.domain, "domain", "", "Only activities of this domain")
	cmd.Flags().StringVar(&f.goal, "goal", "", "Only activities of this goal")
}

func (f filterFlags) filter() tracker.Filter {
	return tracker.Filter{DomainID: f.domain, GoalID: f.goal}
}

func newPeriodKeyCmd(opts *rootOptions) *cobra.Command {
	var frequency string
	cmd := &cobra.Command{
		Use:   "period-key",
		Short: "Print the period key of a frequency for the reference date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := opts.refDate()
			if err != nil {
				return err
			}
			freq := tracker.NormalizeFrequency(frequency)
			fmt.Fprintln(cmd.OutOrStdout(), tracker.PeriodKey(freq, date))
			return nil
		},
	}
	cmd.Flags().StringVar(&frequency, "frequency", string(tracker.Daily), "DAILY, WEEKLY, MONTHLY or ONCE")
	return cmd
}

func newDueCmd(opts *rootOptions) *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List the activities due on the reference date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := opts.refDate()
			if err != nil {
				return err
			}
			snap, err := opts.loadSnapshot()
			if err != nil {
				return err
			}
			due := snap.Due(date, filters.filter())
			renderDue(cmd.OutOrStdout(), newStyles(opts.plain || !colorEnabled(cmd.OutOrStdout())), date, due, tracker.CompletionRate(due, date))
			return nil
		},
	}
	filters.register(cmd)
	return cmd
}

func newViewCmd(opts *rootOptions) *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:       "view <day|week|month|once>",
		Short:     "Show the grouped activities and completion rate of a view",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"day", "week", "month", "once"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := tracker.ParseViewMode(args[0])
			if err != nil {
				return err
			}
			date, err := opts.refDate()
			if err != nil {
				return err
			}
			snap, err := opts.loadSnapshot()
			if err != nil {
				return err
			}
			renderView(cmd.OutOrStdout(), newStyles(opts.plain || !colorEnabled(cmd.OutOrStdout())), snap.View(mode, date, filters.filter(), opts.labels))
			return nil
		},
	}
	filters.register(cmd)
	return cmd
}

func newToggleCmd(opts *rootOptions) *cobra.Command {
	var undo bool
	var notes string
	cmd := &cobra.Command{
		Use:   "toggle <activity-id>",
		Short: "Mark the activity's period containing the reference date as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := opts.refDate()
			if err != nil {
				return err
			}
			snap, err := opts.loadSnapshot()
			if err != nil {
				return err
			}
			stored, err := snap.Toggle(args[0], date, !undo, now(), strings.TrimSpace(notes), uuid.NewString())
			if err != nil {
				return err
			}
			if err := snapshotfile.Save(opts.file, snap); err != nil {
				return err
			}
			state := "done"
			if !stored.Completed {
				state = "not done"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", args[0], stored.PeriodKey, state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "Mark the period as not done")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes stored with the completion")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var subject string
	var scopes []string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the planner API using JWT_SECRET and JWT_ISSUER",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(subject) == "" {
				return fmt.Errorf("--subject is required")
			}
			cfg := config.Load()
			token, err := authlib.Issue(authlib.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, subject, scopes, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Owner id carried as the token subject")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopePlannerRead, auth.ScopePlannerWrite}, "Granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
