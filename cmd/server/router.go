package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"badgegate/internal/access/handler"
	"badgegate/internal/platform/metrics"
	"badgegate/internal/platform/middleware"
	"badgegate/pkg/platform/middleware/metadata"
	"badgegate/pkg/platform/middleware/requesttime"
)

type registerer interface {
	Register(r chi.Router)
}

// newRouter applies the shared middleware chain and mounts every route group.
func newRouter(log *slog.Logger, reg *prometheus.Registry, groups ...registerer) http.Handler {
	httpMetrics := metrics.New(reg)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(log))
	r.Use(httpMetrics.Middleware)

	for _, g := range groups {
		g.Register(r)
	}
	r.Method(http.MethodGet, "/metrics", metrics.Handler(reg))
	return r
}

var (
	_ registerer = (*handler.Handler)(nil)
	_ registerer = (*handler.Health)(nil)
)
