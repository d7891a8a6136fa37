// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/quickly-predict/cliparse"
	"github.com/danielhkuo/quickly-predict/db"
	"github.com/danielhkuo/quickly-predict/forms"
	"github.com/danielhkuo/quickly-predict/knn"
	"github.com/danielhkuo/quickly-predict/middleware"
	"github.com/danielhkuo/quickly-predict/models"
	"github.com/danielhkuo/quickly-predict/upstream"
)

type AppHandler struct {
	datasets *db.DatasetStore
	deps     Deps
	logger   *zap.Logger
}

func NewAppHandler(conn *sql.DB, cfg cliparse.Config, deps Deps) *AppHandler {
	return &AppHandler{
		datasets: db.NewDatasetStore(conn, cfg.DatabaseType),
		deps:     deps,
		logger:   deps.logger(),
	}
}

// lookup resolves the {app} path value, writing a 404 when unknown
func (h *AppHandler) lookup(w http.ResponseWriter, r *http.Request) (*forms.App, bool) {
	app, ok := h.deps.Registry.Get(r.PathValue("app"))
	if !ok {
		middleware.ErrorResponse(w, http.StatusNotFound, "App not found")
		return nil, false
	}
	return app, true
}

// ListApps handles GET /api/apps
func (h *AppHandler) ListApps(w http.ResponseWriter, r *http.Request) {
	apps := h.deps.Registry.List()
	out := make([]models.AppSummary, 0, len(apps))
	for _, app := range apps {
		out = append(out, models.AppSummary{
			Name:        app.Name,
			Title:       app.Title,
			Description: app.Description,
			Engine:      app.Engine,
			HasHealth:   app.HealthPath != "",
		})
	}
	middleware.JSONResponse(w, http.StatusOK, out)
}

// GetApp handles GET /api/apps/{app}
func (h *AppHandler) GetApp(w http.ResponseWriter, r *http.Request) {
	app, ok := h.lookup(w, r)
	if !ok {
		return
	}
	middleware.JSONResponse(w, http.StatusOK, app)
}

// Predict handles POST /api/apps/{app}/predict
//
// The body is the raw form input. Invalid input returns 400 with the form
// back in the idle state and every field error; otherwise the packaged
// payload goes to the app's engine. Upstream failures are shown with the
// app's fixed message, or verbatim for apps that surface service errors.
func (h *AppHandler) Predict(w http.ResponseWriter, r *http.Request) {
	app, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req models.PredictRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	sub := forms.NewSubmission(app.Name)

	payload, err := app.Package(req.Inputs)
	if err != nil {
		var verr *forms.ValidationError
		if !errors.As(err, &verr) {
			h.logger.Error("failed to package input", zap.String("app", app.Name), zap.Error(err))
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to process input")
			return
		}
		sub.Reject(verr.Errors)
		h.count(app.Name, models.OutcomeInvalid)
		middleware.JSONResponse(w, http.StatusBadRequest, sub)
		return
	}

	result, err := h.dispatch(r.Context(), app, payload, r.URL.Query().Get("dataset"))
	if err != nil {
		status, msg, outcome := h.failure(app, err)
		sub.Fail(msg)
		h.count(app.Name, outcome)
		middleware.JSONResponse(w, status, sub)
		return
	}

	sub.Succeed(result)
	h.count(app.Name, models.OutcomeSuccess)
	middleware.JSONResponse(w, http.StatusOK, sub)
}

// errNoDataset is returned by dispatch for knn apps called without ?dataset=
var errNoDataset = errors.New("no dataset selected")

func (h *AppHandler) dispatch(ctx context.Context, app *forms.App, payload map[string]any, dataset string) (map[string]any, error) {
	switch app.Engine {
	case forms.EngineMockLogistic:
		var x []float64
		for _, f := range app.Fields {
			if f.Kind == forms.KindVector {
				x, _ = payload[f.Key].([]float64)
				break
			}
		}
		pred, err := h.deps.Classifier.Predict(x)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"prediction":  pred.Label,
			"confidence":  pred.Confidence,
			"probability": pred.Probability,
			"title":       pred.Title,
			"description": pred.Description,
		}, nil

	case forms.EngineKNN:
		if dataset == "" {
			return nil, errNoDataset
		}
		q := make(knn.Query, len(payload))
		for k, v := range payload {
			if f, ok := v.(float64); ok {
				q[k] = f
			}
		}
		res, err := estimate(ctx, h.datasets, dataset, q)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"predicted_quality": res.Value,
			"neighbors":         res.Neighbors,
		}, nil

	default:
		url, body := app.PredictRequest(payload)
		var out map[string]any
		var err error
		if app.Method == http.MethodGet {
			err = h.deps.Upstream.GetJSON(ctx, app.Name, url, &out)
		} else {
			err = h.deps.Upstream.PostJSON(ctx, app.Name, url, body, &out)
		}
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = map[string]any{}
		}
		return out, nil
	}
}

// failure maps a dispatch error to the status, message and metric outcome
// of the response
func (h *AppHandler) failure(app *forms.App, err error) (int, string, string) {
	var se *upstream.StatusError
	switch {
	case errors.Is(err, errNoDataset):
		return http.StatusBadRequest, msgNoDataset, models.OutcomeRejected
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound, "Dataset not found", models.OutcomeRejected
	case errors.Is(err, knn.ErrNoReferenceData), errors.Is(err, knn.ErrInvalidQuery):
		return http.StatusUnprocessableEntity, app.ErrorMessage, models.OutcomeRejected
	case errors.As(err, &se):
		h.logger.Warn("prediction rejected",
			zap.String("app", app.Name),
			zap.Int("status", se.StatusCode),
			zap.String("message", se.Message),
		)
		msg := app.ErrorMessage
		if app.SurfaceErrors && se.Message != "" {
			msg = se.Message
		}
		status := http.StatusBadGateway
		if se.StatusCode >= 400 && se.StatusCode < 500 {
			status = se.StatusCode
		}
		return status, msg, models.OutcomeRejected
	case errors.Is(err, upstream.ErrUnavailable):
		h.logger.Warn("prediction service unavailable", zap.String("app", app.Name), zap.Error(err))
		return http.StatusBadGateway, app.ErrorMessage, models.OutcomeUnavailable
	default:
		h.logger.Error("prediction failed", zap.String("app", app.Name), zap.Error(err))
		return http.StatusInternalServerError, app.ErrorMessage, models.OutcomeUnavailable
	}
}

func (h *AppHandler) count(app, outcome string) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.Prediction(app, outcome)
	}
}

// Health handles GET /api/apps/{app}/health
func (h *AppHandler) Health(w http.ResponseWriter, r *http.Request) {
	app, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if app.HealthPath == "" {
		middleware.ErrorResponse(w, http.StatusNotFound, "App has no health check")
		return
	}

	res := h.probe(r.Context(), app)
	status := http.StatusOK
	if res.Status != "ok" {
		status = http.StatusBadGateway
	}
	middleware.JSONResponse(w, status, res)
}

func (h *AppHandler) probe(ctx context.Context, app *forms.App) models.UpstreamHealth {
	if err := h.deps.Upstream.Ping(ctx, app.Name, app.URL(app.HealthPath)); err != nil {
		return models.UpstreamHealth{App: app.Name, Status: "unavailable", Error: err.Error()}
	}
	return models.UpstreamHealth{App: app.Name, Status: "ok"}
}

// UpstreamsHealth handles GET /api/upstreams/health
// Every app with a health path is probed concurrently; the call itself
// always succeeds.
func (h *AppHandler) UpstreamsHealth(w http.ResponseWriter, r *http.Request) {
	var apps []*forms.App
	for _, app := range h.deps.Registry.List() {
		if app.HealthPath != "" {
			apps = append(apps, app)
		}
	}

	out := make([]models.UpstreamHealth, len(apps))
	g, ctx := errgroup.WithContext(r.Context())
	for i, app := range apps {
		g.Go(func() error {
			out[i] = h.probe(ctx, app)
			return nil
		})
	}
	g.Wait()

	middleware.JSONResponse(w, http.StatusOK, out)
}

// Metadata handles GET /api/apps/{app}/metadata
// Features and example values are fetched concurrently.
func (h *AppHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	app, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if app.FeaturesPath == "" && app.ExamplesPath == "" {
		middleware.ErrorResponse(w, http.StatusNotFound, "App has no metadata")
		return
	}

	var meta models.AppMetadata
	g, ctx := errgroup.WithContext(r.Context())
	if app.FeaturesPath != "" {
		g.Go(func() error {
			return h.deps.Upstream.GetJSON(ctx, app.Name, app.URL(app.FeaturesPath), &meta.Features)
		})
	}
	if app.ExamplesPath != "" {
		g.Go(func() error {
			return h.deps.Upstream.GetJSON(ctx, app.Name, app.URL(app.ExamplesPath), &meta.Examples)
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Warn("failed to fetch metadata", zap.String("app", app.Name), zap.Error(err))
		middleware.ErrorResponse(w, http.StatusBadGateway, app.ErrorMessage)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, meta)
}
