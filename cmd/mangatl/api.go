package main

import (
	"github.com/spf13/cobra"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running orchestrator",
	Long: `API commands call the running mangatl orchestrator via HTTP.

These commands require a running orchestrator (mangatl serve).
Use --server to specify a custom server URL.

Examples:
  mangatl api health                       # Check server health
  mangatl api translate page.png           # Translate one page
  mangatl api chapters create *.png        # Translate a chapter
  mangatl api chapters retry <id> 3        # Retry page 3 of a chapter`,
}

var chaptersCmd = &cobra.Command{
	Use:   "chapters",
	Short: "Chapter translation commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand((&endpoints.TranslatePageEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ListMetricsEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.SwaggerEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.SwaggerUIEndpoint{}).Command(getServerURL))

	// Chapters as subcommand group
	for _, ep := range endpoints.ChapterCommands() {
		chaptersCmd.AddCommand(ep.Command(getServerURL))
	}

	apiCmd.AddCommand(chaptersCmd)
	rootCmd.AddCommand(apiCmd)
}
