package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveNoAgent bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the autonomous agent",
	Long: `Start the dashboard API on server.addr. The decision loop runs in the
same process unless --no-agent is given.

Example:
  finsight serve --config finsight.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoAgent, "no-agent", false, "serve the API without the decision loop")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx, !serveNoAgent)
}
