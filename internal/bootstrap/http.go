package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/owt-mfg/erpsync/internal/httpx"
)

const httpShutdownTimeout = 10 * time.Second

// RunHTTPServer serves the control surface until the context is cancelled,
// then shuts down gracefully.
func RunHTTPServer(ctx context.Context, s *Services) error {
	router := httpx.NewRouter(httpx.RouterServices{
		Fetcher: s.Fetcher,
		Jobs:    s.Jobs,
		APIKey:  s.Config.HTTP.APIKey,
		Logger:  s.Logger,
	})

	server := &http.Server{
		Addr:         s.Config.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  time.Duration(s.Config.HTTP.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.Config.HTTP.WriteTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.Logger.Info("http server stopped")
	return nil
}
