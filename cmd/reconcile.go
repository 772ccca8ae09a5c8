package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"civicsync/ledger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func reconcileCmd() *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check profile balances and ranks against the civic coin ledger",
		Long: `Reconcile sums every profile's ledger entries and compares the total with
the stored balance and rank. Resolved issues without a reward entry, and
reward entries whose issue is not resolved, are reported as well.

With --repair, mismatched balances and ranks are rewritten from the ledger.
Issue divergences are only reported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			report, err := ledger.NewReconciler(a.store, a.ledger.Ranks(), log).Run(cmd.Context(), repair)
			if err != nil {
				return err
			}
			log.Info("reconciliation finished",
				zap.Int("profiles", report.ProfilesChecked),
				zap.Int("divergences", len(report.Divergences)),
				zap.Bool("repair", repair))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "rewrite diverged balances and ranks from the ledger")
	return cmd
}
