// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/danielhkuo/quickly-predict/cliparse"
	"github.com/danielhkuo/quickly-predict/handlers"
	"github.com/danielhkuo/quickly-predict/metrics"
	"github.com/danielhkuo/quickly-predict/middleware"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, deps handlers.Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	mux := http.NewServeMux()

	// Every API route is logged and measured under its pattern
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, middleware.WithLogging(deps.Logger, middleware.WithMetrics(deps.Metrics, pattern, h)))
	}

	// Initialize handlers
	appHandler := handlers.NewAppHandler(db, cfg, deps)
	datasetHandler := handlers.NewDatasetHandler(db, cfg, deps)
	trendHandler := handlers.NewTrendHandler(deps)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", deps.Metrics.Handler())

	// Prediction forms
	handle("GET /api/apps", appHandler.ListApps)
	handle("GET /api/apps/{app}", appHandler.GetApp)
	handle("POST /api/apps/{app}/predict", appHandler.Predict)
	handle("GET /api/apps/{app}/health", appHandler.Health)
	handle("GET /api/apps/{app}/metadata", appHandler.Metadata)
	handle("GET /api/upstreams/health", appHandler.UpstreamsHealth)

	// Reference datasets for the wine estimator
	handle("POST /api/datasets", datasetHandler.CreateDataset)
	handle("GET /api/datasets", datasetHandler.ListDatasets)
	handle("GET /api/datasets/{id}", datasetHandler.GetDataset)
	handle("POST /api/datasets/{id}/estimate", datasetHandler.Estimate)

	// Spreadsheet editor
	handle("GET /api/trends", trendHandler.ListTrends)
	handle("GET /api/trends/{key}", trendHandler.GetTrend)
	handle("PUT /api/trends/{key}", trendHandler.UpdateTrend)
	handle("POST /api/trends/{key}/like", trendHandler.Like)
	handle("GET /api/trends/{key}/predicted-likes", trendHandler.PredictedLikes)
	handle("POST /api/updateEntry", trendHandler.UpdateEntry)

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quickly-predict API v1"))
	})

	var h http.Handler = mux
	h = middleware.CORS(cfg.AllowedOrigins)(h)
	h = chimw.Recoverer(h)
	h = chimw.RequestID(h)
	return h
}
