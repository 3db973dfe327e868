package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maltedev/regional-product-extractor/internal/api"
	"github.com/maltedev/regional-product-extractor/internal/diagnostics"
	"github.com/maltedev/regional-product-extractor/internal/jobs"
	"github.com/maltedev/regional-product-extractor/internal/queue"
	"github.com/maltedev/regional-product-extractor/internal/ratelimit"
	"github.com/maltedev/regional-product-extractor/internal/retry"
)

const responseSlack = 15 * time.Second

// requestTimeouts bounds API routes by the longest a synchronous extraction
// can run: URL resolution plus every attempt and backoff of the policy. The
// server write timeout is raised when it would cut such a response short.
func requestTimeouts(policy retry.Policy, resolve, write time.Duration) (route, server time.Duration) {
	route = resolve + policy.MaxDuration() + responseSlack
	server = max(write, route+responseSlack)
	return route, server
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the extraction HTTP API and job workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				root.cfg.Server.Port = port
			}
			return runServe(cmd.Context(), root)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides SERVER_PORT)")
	return cmd
}

func runServe(parent context.Context, root *rootOptions) error {
	cfg, logger := root.cfg, root.logger

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	janitor := diagnostics.NewJanitor(cfg.Diagnostics.Dir, cfg.Diagnostics.Retention, cfg.Diagnostics.PruneSchedule, logger)
	if err := janitor.Start(ctx); err != nil {
		return err
	}
	a.startRelay(ctx)

	q := queue.NewInMemoryQueue(cfg.Server.QueueSize)
	limiter := ratelimit.NewAdaptiveRateLimiter(cfg.Server.LaunchDelayMin, cfg.Server.LaunchDelayMax)
	jm, err := jobs.NewManager(jobs.Config{Workers: cfg.Server.Workers}, a.service, q, limiter, a.sink, logger)
	if err != nil {
		return err
	}

	workersDone := make(chan struct{})
	go func() {
		jm.Run(ctx)
		close(workersDone)
	}()

	routeTimeout, writeTimeout := requestTimeouts(a.policy, cfg.Resolver.Timeout, cfg.Server.WriteTimeout)
	handler := api.NewRouter(api.NewHandlers(a.service, jm, a.sink, logger), api.RouterConfig{
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		RequestTimeout:    routeTimeout,
		Metrics:           a.metrics.Handler(),
		Health:            healthHandler(a),
	})

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := q.Close(); err != nil {
		logger.Warn("failed to close job queue", "error", err)
	}

	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		logger.Warn("job workers did not stop before shutdown timeout")
	}

	logger.Info("server stopped")
	return nil
}

func healthHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}

		if a.db != nil {
			if err := a.db.Ping(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "error"
				body["database"] = err.Error()
			}
		}
		if a.redis != nil {
			if err := a.redis.Ping(r.Context()).Err(); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "error"
				body["redis"] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
