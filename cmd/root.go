package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fiffu/pricewatch/app"
	"github.com/fiffu/pricewatch/lib/monitor"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const startStopTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:   "pricewatch",
	Short: "Track product prices on e-commerce sites",
	Long:  "pricewatch scrapes product pages on a schedule, keeps a price history and fires alerts when prices drop.",
}

func init() {
	// .env is optional; real environment variables win over it.
	cobra.OnInitialize(func() { _ = godotenv.Load() })
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withMonitor starts the core graph, hands the monitor to fn and shuts everything down.
func withMonitor(ctx context.Context, fn func(context.Context, *monitor.Monitor) error) error {
	var mon *monitor.Monitor
	fxApp := fx.New(app.Core, fx.Populate(&mon))

	startCtx, cancel := context.WithTimeout(ctx, startStopTimeout)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx, mon)

	stopCtx, cancel := context.WithTimeout(context.Background(), startStopTimeout)
	defer cancel()
	if err := fxApp.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func parseProductID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid product id %q", arg)
	}
	return uint(id), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
