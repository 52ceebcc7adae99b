// Package server is the liveness HTTP surface of sheetwatch. It reports that
// the process is up and exposes the sync status, but sync failures never make
// the liveness checks fail.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/sheetwatch/pkg/watcher"
)

// StatusProvider reports the current sync status.
type StatusProvider interface {
	Status() watcher.Status
}

// Server contains the server configuration.
type Server struct {
	// Status is the sync service whose state is served on /status.
	Status StatusProvider

	// Logger is the logger for the server.
	Logger hclog.Logger
}

// NewMux registers the sheetwatch endpoints.
//
//	GET /        - plain text banner
//	GET /health  - {"health":"ok"}
//	GET /status  - sync status
func NewMux(srv Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", RootHandler())
	mux.Handle("/health", HealthHandler())
	mux.Handle("/status", StatusHandler(srv))
	return mux
}

// RootHandler answers GET / with a plain text banner.
func RootHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "sheetwatch is running")
	})
}

// HealthHandler answers GET /health.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"health": "ok"})
	})
}

// StatusHandler answers GET /status with the sync status.
func StatusHandler(srv Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if srv.Status == nil {
			http.Error(w, "Sync service not configured", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(srv.Status.Status()); err != nil && srv.Logger != nil {
			srv.Logger.Error("error encoding status response", "error", err)
		}
	})
}

// ListenAndServe serves handler on addr until ctx is cancelled, then shuts
// the server down, waiting up to shutdownTimeout for open requests.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration, logger hclog.Logger) error {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("error starting listener: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down HTTP server: %w", err)
	}
	return nil
}
