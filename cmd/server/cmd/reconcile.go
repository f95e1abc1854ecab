package cmd

import (
	"fmt"

	"github.com/Ycseeasy/explore-with-me/internal/config"
	"github.com/Ycseeasy/explore-with-me/internal/domain/ids"
	"github.com/spf13/cobra"
)

func newReconcileCommand(global *globalFlags) *cobra.Command {
	var eventID string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recount confirmed requests and repair drifted counters",
		Long: `Recount CONFIRMED participation requests for every event, or for one
event with --event, and rewrite confirmed_requests where it drifted.

Each event is corrected under its lock. Events that stay locked past the
storage lock timeout are skipped and reported.

Examples:
  server reconcile
  server reconcile --event 01HZX3Q7K2M8N4P6R9S0T1V2W3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg.Logging)
			be, err := openBackend(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer be.Close()

			reconciler := be.reconciler(cfg, logger)
			out := cmd.OutOrStdout()
			if eventID != "" {
				id := ids.Normalize(eventID)
				if err := ids.ValidateULID(id); err != nil {
					return fmt.Errorf("--event: %w", err)
				}
				drift, err := reconciler.ReconcileEvent(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("reconcile event %s: %w", id, err)
				}
				fmt.Fprintf(out, "event %s: drift %d\n", id, drift)
				return nil
			}

			report, err := reconciler.ReconcileAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			fmt.Fprintf(out, "checked %d, corrected %d, skipped %d\n", report.Checked, report.Corrected, report.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "reconcile a single event")
	return cmd
}
