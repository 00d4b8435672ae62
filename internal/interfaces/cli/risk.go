package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecocomply/compliance-engine/internal/bootstrap"
	"github.com/ecocomply/compliance-engine/internal/domain/risk"
	"github.com/ecocomply/compliance-engine/pkg/errors"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

func newRiskCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Inspect and recompute risk scores",
	}
	cmd.AddCommand(newRiskRecomputeCommand(opts), newRiskShowCommand(opts))
	return cmd
}

func newRiskRecomputeCommand(opts *RootOptions) *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute every site snapshot of a tenant plus the company rollup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenant == "" {
				return errors.InvalidParam("--tenant is required")
			}

			cfg, logger, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			engine, err := bootstrap.New(cfg, logger, bootstrap.WithRedis())
			if err != nil {
				return err
			}
			defer engine.Close()

			sites, err := engine.Risk.RecomputeAll(cmd.Context(), common.TenantID(tenant))
			if err != nil {
				return err
			}
			if sites == 0 {
				printResult(opts, map[string]int{"sites_scored": 0},
					"Nothing recomputed (no sites, or another recompute holds the lock).")
				return nil
			}
			printResult(opts, map[string]int{"sites_scored": sites},
				fmt.Sprintf("Recomputed %d site snapshots plus the company rollup.", sites))
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	return cmd
}

func newRiskShowCommand(opts *RootOptions) *cobra.Command {
	var tenant, site string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current risk snapshot for a site or the company",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenant == "" {
				return errors.InvalidParam("--tenant is required")
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

			tenantID := common.TenantID(tenant)
			var score *risk.Score
			if site != "" {
				score, err = engine.Risk.GetSiteRisk(cmd.Context(), tenantID, common.ID(site))
			} else {
				score, err = engine.Risk.GetCompanyRisk(cmd.Context(), tenantID)
			}
			if err != nil {
				return err
			}

			printResult(opts, score, fmt.Sprintf(
				"%s risk %d (%s), computed %s, valid until %s",
				score.Type, score.Value, score.Level,
				score.ComputedAt.Format("2006-01-02 15:04"),
				score.ValidUntil.Format("2006-01-02 15:04")))
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().StringVar(&site, "site", "", "site ID (omit for the company rollup)")
	return cmd
}
