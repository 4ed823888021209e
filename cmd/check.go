package cmd

import (
	"context"
	"errors"

	"github.com/fiffu/pricewatch/app"
	"github.com/fiffu/pricewatch/lib/monitor"
	"github.com/spf13/cobra"
)

var errNoPrice = errors.New("no price available: product missing, inactive or extraction failed")

var checkCmd = &cobra.Command{
	Use:   "check <product-id>",
	Short: "Check one product's price now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProductID(args[0])
		if err != nil {
			return err
		}
		refresh, _ := cmd.Flags().GetBool("refresh")

		return withMonitor(cmd.Context(), func(ctx context.Context, mon *monitor.Monitor) error {
			check := mon.CheckProduct
			if refresh {
				check = mon.Refresh
			}

			result, err := check(ctx, id)
			if err != nil {
				return err
			}
			if result == nil {
				return errNoPrice
			}
			return printJSON(cmd, app.PriceView{}.From(id, result))
		})
	},
}

var checkAllCmd = &cobra.Command{
	Use:   "check-all",
	Short: "Check every active product, optionally only one user's",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var userID *uint
		if cmd.Flags().Changed("user") {
			id, _ := cmd.Flags().GetUint("user")
			userID = &id
		}

		return withMonitor(cmd.Context(), func(ctx context.Context, mon *monitor.Monitor) error {
			results, err := mon.CheckAllProducts(ctx, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, app.BatchView{}.From(results))
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <product-id>",
	Short: "Show a product's price statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProductID(args[0])
		if err != nil {
			return err
		}

		return withMonitor(cmd.Context(), func(ctx context.Context, mon *monitor.Monitor) error {
			stats, err := mon.GetStats(ctx, id)
			if err != nil {
				return err
			}
			if stats == nil {
				return errNoPrice
			}
			return printJSON(cmd, app.StatsView{}.From(stats))
		})
	},
}

func init() {
	checkCmd.Flags().Bool("refresh", false, "Ignore any cached price")
	checkAllCmd.Flags().Uint("user", 0, "Only check products owned by this user id")

	rootCmd.AddCommand(checkCmd, checkAllCmd, statsCmd)
}
