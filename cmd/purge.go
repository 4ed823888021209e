package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fiffu/pricewatch/config"
	"github.com/fiffu/pricewatch/lib/monitor"
	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete price history older than the retention window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if !cmd.Flags().Changed("days") {
			cfg, err := config.Parse()
			if err != nil {
				return err
			}
			days = cfg.Monitor.HistoryRetentionDays
		}
		if days < 1 {
			return fmt.Errorf("retention must be at least 1 day, got %d", days)
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -days)

		return withMonitor(cmd.Context(), func(ctx context.Context, mon *monitor.Monitor) error {
			deleted, err := mon.PurgeHistory(ctx, cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d history rows older than %s\n", deleted, cutoff.Format(time.RFC3339))
			return nil
		})
	},
}

func init() {
	purgeCmd.Flags().Int("days", 0, "Keep this many days of history (default HISTORY_RETENTION_DAYS)")
	rootCmd.AddCommand(purgeCmd)
}
