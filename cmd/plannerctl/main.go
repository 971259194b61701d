// Command plannerctl runs the planner engine offline against a JSON snapshot file.
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"example.com/planner/internal/config"
	"example.com/planner/internal/logging"
	"example.com/planner/internal/tracker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	file       string
	labelsFile string
	date       string
	logLevel   string
	plain      bool

	logger *log.Logger
	labels tracker.Labels
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "plannerctl",
		Short:         "Inspect and update a planner snapshot from the terminal",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(cmd.ErrOrStderr(), "plannerctl", logging.Options{Level: opts.logLevel})
			if err != nil {
				return err
			}
			opts.logger = logger
			labels, err := config.Config{LabelsFile: opts.labelsFile}.LoadLabels()
			if err != nil {
				return err
			}
			opts.labels = labels
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.file, "file", "f", envOr("PLANNER_FILE", "planner.json"), "Snapshot file")
	flags.StringVar(&opts.labelsFile, "labels", os.Getenv("LABELS_FILE"), "TOML file overriding group labels")
	flags.StringVarP(&opts.date, "date", "d", "", "Reference date (YYYY-MM-DD, default today)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level")
	flags.BoolVar(&opts.plain, "plain", false, "Disable colors")

	cmd.AddCommand(
		newPeriodKeyCmd(opts),
		newDueCmd(opts),
		newViewCmd(opts),
		newToggleCmd(opts),
		newTokenCmd(),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
