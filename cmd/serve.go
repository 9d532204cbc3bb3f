package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jhaber/guice/framework/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the debug HTTP endpoints until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.New(envFiles...).Run(ctx)
	},
}
