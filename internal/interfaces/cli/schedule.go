package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecocomply/compliance-engine/internal/bootstrap"
	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

func newScheduleCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect compliance schedules",
	}
	cmd.AddCommand(newScheduleShowCommand(opts))
	return cmd
}

func newScheduleShowCommand(opts *RootOptions) *cobra.Command {
	var tenant, id string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a schedule with its current due date and status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenant == "" {
				return errors.InvalidParam("--tenant is required")
			}
			if id == "" {
				return errors.InvalidParam("--id is required")
			}

			cfg, logger, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			engine, err := bootstrap.New(cfg, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			sched, err := engine.Scheduling.GetSchedule(cmd.Context(), common.TenantID(tenant), common.ID(id))
			if err != nil {
				return err
			}

			nextDue := "none"
			if !sched.NextDueDate.IsZero() {
				nextDue = sched.NextDueDate.Format("2006-01-02")
			}
			printResult(opts, sched, fmt.Sprintf(
				"%s %s schedule for obligation %s at site %s, next due %s",
				sched.Status, sched.Frequency, sched.ObligationID, sched.SiteID, nextDue))
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().StringVar(&id, "id", "", "schedule ID (required)")
	return cmd
}
