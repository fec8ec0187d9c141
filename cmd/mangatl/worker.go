package main

import (
	"github.com/spf13/cobra"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/server/endpoints"
)

var (
	workerHost string
	workerPort string
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the GPU worker",
	Long: `Start the mangatl worker.

The worker loads the detection and rendering engine in the background and
answers NOT_READY until it is warm. It serves the internal detect, render
and page endpoints to the orchestrator; every call must carry the
worker.auth_token as a bearer token unless the token is empty.

Examples:
  MANGATL_WORKER_TOKEN=s3cret mangatl worker
  mangatl worker --port 9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), endpoints.RoleWorker, workerHost, workerPort)
	},
}

func init() {
	workerCmd.Flags().StringVar(&workerHost, "host", "", "Host to bind to (default: worker.host)")
	workerCmd.Flags().StringVar(&workerPort, "port", "", "Port to listen on (default: worker.port)")

	rootCmd.AddCommand(workerCmd)
}
