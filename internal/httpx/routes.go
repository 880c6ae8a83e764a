// Package httpx contains the HTTP control surface for the pipeline.
package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Fetcher FetcherControl
	Jobs    JobStatsProvider
	APIKey  string
	Logger  *slog.Logger
}

// NewRouter creates and configures the control-surface router. Every /api
// route requires the configured API key; /healthz is open for probes.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	syncHandlers := &SyncHandlers{Fetcher: services.Fetcher}
	jobHandlers := &JobHandlers{Jobs: services.Jobs}

	auth := RequireAPIKey(services.APIKey)
	mux.Handle("POST /api/sync/trigger", auth(http.HandlerFunc(syncHandlers.Trigger)))
	mux.Handle("GET /api/sync/status", auth(http.HandlerFunc(syncHandlers.Status)))
	mux.Handle("POST /api/sync/stop", auth(http.HandlerFunc(syncHandlers.Stop)))
	mux.Handle("GET /api/jobs/stats", auth(http.HandlerFunc(jobHandlers.Stats)))

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return Chain(mux,
		Recover(logger),
		RequestID(),
		Logging(logger),
	)
}
