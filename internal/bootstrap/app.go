package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/middleware"
	"gitlab.com/timkado/api/daisi-feed-client/pkg/safego"
)

type readiness struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

// checkReadiness reports the state of every configured dependency. Optional
// dependencies that are not configured never make the process unready.
func (a *App) checkReadiness(ctx context.Context) (readiness, bool) {
	ready := true
	deps := make(map[string]string)

	if a.redisClient != nil {
		if err := a.redisClient.Ping(ctx).Err(); err == nil {
			deps["redis"] = "connected"
		} else {
			deps["redis"] = "disconnected"
			ready = false
			a.logger.Warn(ctx, "Readiness check failed: Redis ping failed", "error", err.Error())
		}
	} else {
		deps["redis"] = "not_configured"
	}

	if a.bus != nil {
		if err := a.bus.Healthy(ctx); err == nil {
			deps["invalidation_bus"] = "connected"
		} else {
			deps["invalidation_bus"] = "disconnected"
			ready = false
			a.logger.Warn(ctx, "Readiness check failed: invalidation bus unhealthy", "error", err.Error())
		}
	} else {
		deps["invalidation_bus"] = "not_configured"
	}

	if a.sessions.IsAuthenticated() {
		deps["session"] = "authenticated"
	} else {
		deps["session"] = "anonymous"
	}
	if a.coordinator.Refreshing() {
		deps["credential_refresh"] = fmt.Sprintf("running (%d queued)", a.coordinator.QueueLength())
	} else {
		deps["credential_refresh"] = "idle"
	}

	resp := readiness{Status: "READY", Dependencies: deps}
	if !ready {
		resp.Status = "NOT_READY"
	}
	return resp, ready
}

// routes registers the operational endpoints on the mux.
func (a *App) routes() {
	wrap := func(h http.Handler) http.Handler {
		return middleware.RequestIDMiddleware(middleware.AccessLogMiddleware(a.logger)(h))
	}

	a.httpServeMux.Handle("GET /health", wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"OK"}`)
	})))

	a.httpServeMux.Handle("GET /ready", wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp, ready := a.checkReadiness(r.Context())
		if ready {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			a.logger.Error(r.Context(), "Failed to encode readiness response", "error", err.Error())
		}
	})))

	a.httpServeMux.Handle("GET /metrics", wrap(promhttp.Handler()))
}

// Run is the `serve` daemon: it restores the session, listens for
// invalidations from other processes, serves the operational endpoints and
// shuts down gracefully on SIGINT/SIGTERM or ctx cancellation.
func (a *App) Run(ctx context.Context) error {
	appCfg := a.configProvider.Get()
	a.logger.Info(ctx, "Starting application", "service_name", appCfg.App.ServiceName, "version", appCfg.App.Version)

	if session, err := a.auth.Restore(ctx); err != nil {
		a.logger.Warn(ctx, "Failed to restore session; continuing anonymous", "error", err.Error())
	} else {
		a.logger.Info(ctx, "Session restored", "authenticated", session.IsAuthenticated, "user_id", session.UserID)
	}

	if a.bus != nil {
		if err := a.bus.SubscribeInvalidations(ctx, a.feed.ApplyRemoteInvalidation); err != nil {
			a.logger.Error(ctx, "Failed to subscribe to cache invalidations", "error", err.Error())
			return fmt.Errorf("failed to subscribe to cache invalidations: %w", err)
		}
		a.logger.Info(ctx, "Listening for cache invalidations", "transport", appCfg.Invalidation.Transport, "origin", a.feed.Origin())
	} else {
		a.logger.Info(ctx, "Cross-process invalidation disabled")
	}

	a.routes()

	safego.Execute(ctx, a.logger, "SignalListenerAndGracefulShutdown", func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)
		select {
		case sig := <-quit:
			a.logger.Info(context.Background(), "Shutdown signal received, initiating graceful shutdown...", "signal", sig.String())
		case <-ctx.Done():
			a.logger.Info(context.Background(), "Application context cancelled, initiating graceful shutdown...")
		}

		shutdownTimeout := 10 * time.Second
		if secs := a.configProvider.Get().App.ShutdownTimeoutSeconds; secs > 0 {
			shutdownTimeout = time.Duration(secs) * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if a.bus != nil {
			if err := a.bus.Close(); err != nil {
				a.logger.Error(context.Background(), "Error closing invalidation subscription", "error", err.Error())
			}
		}
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error(context.Background(), "HTTP server graceful shutdown failed", "error", err.Error())
		}
		a.logger.Info(context.Background(), "HTTP server shut down.")
	})

	a.logger.Info(ctx, fmt.Sprintf("HTTP server listening on port %d", appCfg.Server.HTTPPort))
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error(ctx, "HTTP server ListenAndServe error", "error", err.Error())
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	a.logger.Info(ctx, "Application shut down gracefully or server closed.")
	return nil
}
