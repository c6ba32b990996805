package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/chatflow/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds the graceful shutdown of the HTTP server.
const ShutdownTimeout = 5 * time.Second

// Serve runs the HTTP API on rt.Config.Addr and, when idle eviction is
// configured, the session janitor. It returns when ctx is done or either fails.
func Serve(ctx context.Context, rt *Runtime, gatherer prometheus.Gatherer) error {
	srv := &http.Server{
		Addr: rt.Config.Addr,
		Handler: httpAdapter.NewHandler(rt.Engine,
			httpAdapter.WithGatherer(gatherer),
			httpAdapter.WithLogger(rt.Logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rt.Logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			rt.Logger.Warn("graceful shutdown did not complete", "timeout", ShutdownTimeout, "error", err)
			return srv.Close()
		}
		rt.Logger.Info("HTTP server stopped gracefully")
		return nil
	})

	if rt.Config.IdleTimeout > 0 {
		g.Go(func() error {
			rt.Logger.Info("session janitor started", "idle_timeout", rt.Config.IdleTimeout, "interval", rt.Config.JanitorInterval)
			return rt.Engine.SessionManager().RunJanitor(gctx, rt.Config.JanitorInterval)
		})
	}

	return g.Wait()
}
