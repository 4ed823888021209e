package cmd

import (
	"net/http"

	"github.com/fiffu/pricewatch/app"
	"github.com/fiffu/pricewatch/lib/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled price checks",
	Run: func(cmd *cobra.Command, args []string) {
		fx.New(
			app.Server,
			fx.Invoke(func(*http.Server, *scheduler.Scheduler) {}),
		).Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
