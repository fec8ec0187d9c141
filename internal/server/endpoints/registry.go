package endpoints

import (
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/api"
)

// Role selects which endpoints a process serves.
type Role string

const (
	// RoleWorker serves detect, render and page to the orchestrator.
	RoleWorker Role = "worker"
	// RoleOrchestrator serves the public page and chapter API.
	RoleOrchestrator Role = "orchestrator"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	Role            Role
	SwaggerSpecPath string
}

// All returns the endpoint instances served by cfg.Role.
func All(cfg Config) []api.Endpoint {
	eps := []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{Role: cfg.Role},
		&ReadyEndpoint{Role: cfg.Role},
		&StatusEndpoint{Role: cfg.Role},
	}

	if cfg.Role == RoleWorker {
		return append(eps,
			&DetectEndpoint{},
			&RenderEndpoint{},
			&PageEndpoint{},
		)
	}

	return append(eps,
		// Page endpoints
		&TranslatePageEndpoint{},

		// Chapter endpoints
		&CreateChapterEndpoint{},
		&ListChaptersEndpoint{},
		&GetChapterEndpoint{},
		&DeleteChapterEndpoint{},
		&RetryPageEndpoint{},
		&PageImageEndpoint{},

		// Metrics endpoints
		&ListMetricsEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},
	)
}

// ChapterCommands returns endpoints for chapter operations.
// This groups chapter-related commands under "chapters" subcommand.
func ChapterCommands() []api.Endpoint {
	return []api.Endpoint{
		&CreateChapterEndpoint{},
		&ListChaptersEndpoint{},
		&GetChapterEndpoint{},
		&DeleteChapterEndpoint{},
		&RetryPageEndpoint{},
		&PageImageEndpoint{},
	}
}
