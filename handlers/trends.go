// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/danielhkuo/quickly-predict/middleware"
	"github.com/danielhkuo/quickly-predict/models"
	"github.com/danielhkuo/quickly-predict/sheet"
	"github.com/danielhkuo/quickly-predict/upstream"
)

// TrendsApp is the registry entry that predicts likes from retweets
const TrendsApp = "trends"

// RetweetsColumn feeds the like predictor
const RetweetsColumn = "Retweets"

type TrendHandler struct {
	store  *sheet.Store
	deps   Deps
	logger *zap.Logger
}

func NewTrendHandler(deps Deps) *TrendHandler {
	return &TrendHandler{store: deps.Sheet, deps: deps, logger: deps.logger()}
}

func (h *TrendHandler) available(w http.ResponseWriter) bool {
	if h.store == nil {
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "No spreadsheet configured")
		return false
	}
	return true
}

func toTrendRow(r sheet.Row) models.TrendRow {
	return models.TrendRow{Index: r.Index, Key: r.Key, Values: r.Values}
}

// ListTrends handles GET /api/trends
// ?platform= filters case-insensitively, ?index= returns the row at that
// position instead of a list.
func (h *TrendHandler) ListTrends(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	if raw := r.URL.Query().Get("index"); raw != "" {
		i, err := strconv.Atoi(raw)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "index must be a whole number")
			return
		}
		row, err := h.store.At(i)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusNotFound, "Row not found")
			return
		}
		middleware.JSONResponse(w, http.StatusOK, toTrendRow(row))
		return
	}

	rows := h.store.List(r.URL.Query().Get("platform"))
	out := models.TrendList{Columns: h.store.Columns(), Rows: make([]models.TrendRow, len(rows))}
	for i, row := range rows {
		out.Rows[i] = toTrendRow(row)
	}
	middleware.JSONResponse(w, http.StatusOK, out)
}

// GetTrend handles GET /api/trends/{key}
func (h *TrendHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	row, err := h.store.Get(r.PathValue("key"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "Row not found")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, toTrendRow(row))
}

// UpdateTrend handles PUT /api/trends/{key}
func (h *TrendHandler) UpdateTrend(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	var req models.UpdateRowRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Values) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "values are required")
		return
	}

	h.update(w, r.PathValue("key"), req.Values)
}

// UpdateEntry handles POST /api/updateEntry
// The editor's save call: id is the row key, updatedEntry the edited row.
func (h *TrendHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	var req models.UpdateEntryRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "id is required")
		return
	}
	if len(req.UpdatedEntry) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "updatedEntry is required")
		return
	}

	h.update(w, req.ID, req.UpdatedEntry)
}

func (h *TrendHandler) update(w http.ResponseWriter, key string, values map[string]any) {
	entry := make(map[string]string, len(values))
	for col, v := range values {
		entry[col] = text(v)
	}

	row, changed, err := h.store.Update(key, entry)
	switch {
	case errors.Is(err, sheet.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Row not found")
	case errors.Is(err, sheet.ErrUnknownColumn):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sheet.ErrKeyChange):
		middleware.ErrorResponse(w, http.StatusConflict, err.Error())
	case err != nil:
		h.logger.Error("failed to update row", zap.String("key", key), zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save row")
	default:
		middleware.JSONResponse(w, http.StatusOK, models.UpdateRowResponse{Row: toTrendRow(row), Changed: changed})
	}
}

// Like handles POST /api/trends/{key}/like
func (h *TrendHandler) Like(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	key := r.PathValue("key")
	likes, err := h.store.Like(key)
	switch {
	case errors.Is(err, sheet.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Row not found")
	case errors.Is(err, sheet.ErrUnknownColumn), errors.Is(err, sheet.ErrNotNumeric):
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		h.logger.Error("failed to like row", zap.String("key", key), zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save like")
	default:
		middleware.JSONResponse(w, http.StatusOK, models.LikeResponse{Key: key, Likes: likes})
	}
}

// PredictedLikes handles GET /api/trends/{key}/predicted-likes
// The row's retweet count is sent to the like predictor.
func (h *TrendHandler) PredictedLikes(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	key := r.PathValue("key")
	row, err := h.store.Get(key)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "Row not found")
		return
	}

	app, ok := h.deps.Registry.Get(TrendsApp)
	if !ok {
		middleware.ErrorResponse(w, http.StatusNotFound, "Like predictor not configured")
		return
	}

	payload, err := app.Package(map[string]any{"retweets": row.Values[RetweetsColumn]})
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	url, _ := app.PredictRequest(payload)
	var out map[string]any
	if err := h.deps.Upstream.GetJSON(r.Context(), app.Name, url, &out); err != nil {
		msg := app.ErrorMessage
		var se *upstream.StatusError
		if errors.As(err, &se) && app.SurfaceErrors && se.Message != "" {
			msg = se.Message
		}
		h.logger.Warn("like prediction failed", zap.String("key", key), zap.Error(err))
		middleware.ErrorResponse(w, http.StatusBadGateway, msg)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.PredictedLikesResponse{
		Key:            key,
		Retweets:       row.Values[RetweetsColumn],
		PredictedLikes: out["predicted_likes"],
	})
}
