package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecocomply/compliance-engine/internal/bootstrap"
)

func newSweepCommand(opts *RootOptions) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one deadline sweep pass",
		Long:  "Runs a single idempotent sweep over all open deadlines: time-driven\nstatus transitions plus reminder dispatch.  The worker does this on a\nticker; use this command for out-of-band runs.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime(opts)
			if err != nil {
				return err
			}

			buildOpts := []bootstrap.Option{}
			if publish {
				buildOpts = append(buildOpts, bootstrap.WithKafka())
			}
			engine, err := bootstrap.New(cfg, logger, buildOpts...)
			if err != nil {
				return err
			}
			defer engine.Close()

			report, err := engine.Lifecycle.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			printResult(opts, report, fmt.Sprintf(
				"Sweep finished: %d examined, %d transitions, %d reminders, %d errors (%.2fs)",
				report.Examined, report.Transitions, report.RemindersFired, report.Errors,
				report.FinishedAt.Sub(report.StartedAt).Seconds()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "publish reminder/overdue signals to Kafka")
	return cmd
}
