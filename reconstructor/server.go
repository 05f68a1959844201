package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsServer exposes /metrics and /healthz while the run lasts.
type metricsServer struct {
	srv *http.Server
}

func newRouter(registry *prometheus.Registry, runID string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "ok %s\n", runID)
	})
	return r
}

func startMetricsServer(addr string, registry *prometheus.Registry, runID string) *metricsServer {
	s := &metricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           newRouter(registry, runID),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	go func() {
		logger.Info(fmt.Sprintf("Serving metrics on %s", addr), "metrics")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(fmt.Sprintf("metrics server: %v", err))
		}
	}()
	return s
}

func (s *metricsServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

type shutdowner interface {
	Shutdown() error
}

func stopMetricsServer(s shutdowner) {
	if err := s.Shutdown(); err != nil {
		logger.Error(fmt.Sprintf("error stopping metrics server: %v", err))
	}
}
