// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/danielhkuo/quickly-predict/cliparse"
	"github.com/danielhkuo/quickly-predict/db"
	"github.com/danielhkuo/quickly-predict/knn"
	"github.com/danielhkuo/quickly-predict/middleware"
	"github.com/danielhkuo/quickly-predict/models"
)

// MaxUploadBytes caps an uploaded CSV
const MaxUploadBytes = 32 << 20

// Message shown when a knn form is submitted before any upload
const msgNoDataset = "Please upload a dataset first"

type DatasetHandler struct {
	store  *db.DatasetStore
	deps   Deps
	logger *zap.Logger
}

func NewDatasetHandler(conn *sql.DB, cfg cliparse.Config, deps Deps) *DatasetHandler {
	return &DatasetHandler{
		store:  db.NewDatasetStore(conn, cfg.DatabaseType),
		deps:   deps,
		logger: deps.logger(),
	}
}

// CreateDataset handles POST /api/datasets
// Accepts a multipart upload in the "file" field or the CSV as the raw body.
func (h *DatasetHandler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	name := r.URL.Query().Get("name")
	var (
		src  io.Reader = r.Body
		size int64    = r.ContentLength
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()
		src, size = file, header.Size
		if name == "" {
			name = header.Filename
		}
	}
	if name == "" {
		name = "dataset"
	}

	columns, samples, err := knn.ParseCSV(src)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid CSV: "+err.Error())
		return
	}
	if missing := knn.MissingColumns(columns); len(missing) > 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "CSV is missing columns: "+strings.Join(missing, ", "))
		return
	}
	if len(samples) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "CSV has no numeric rows")
		return
	}

	ds, err := h.store.Create(r.Context(), name, columns, samples)
	if err != nil {
		h.logger.Error("failed to store dataset", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to store dataset")
		return
	}

	h.logger.Info("dataset uploaded",
		zap.String("dataset_id", ds.ID),
		zap.String("name", name),
		zap.String("size", humanize.Bytes(uint64(max(size, 0)))),
		zap.String("rows", humanize.Comma(int64(ds.Rows))),
	)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateDatasetResponse{
		DatasetID: ds.ID,
		Rows:      ds.Rows,
		Columns:   ds.Columns,
		Stats:     knn.Describe(columns, samples),
	})
}

// ListDatasets handles GET /api/datasets
func (h *DatasetHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list datasets", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to list datasets")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// GetDataset handles GET /api/datasets/{id}
func (h *DatasetHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ds, err := h.store.Get(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Dataset not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load dataset", zap.String("dataset_id", id), zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load dataset")
		return
	}

	samples, err := h.store.Samples(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load samples", zap.String("dataset_id", id), zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load dataset")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.DatasetDetail{
		Dataset: ds,
		Stats:   knn.Describe(ds.Columns, samples),
	})
}

// Estimate handles POST /api/datasets/{id}/estimate
func (h *DatasetHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req models.EstimateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	query, ok := wineQuery(req.Values)
	if !ok {
		h.count(models.OutcomeInvalid)
		middleware.ErrorResponse(w, http.StatusBadRequest, knn.InvalidQueryMessage)
		return
	}

	res, err := estimate(r.Context(), h.store, id, query)
	switch {
	case errors.Is(err, db.ErrNotFound):
		h.count(models.OutcomeRejected)
		middleware.ErrorResponse(w, http.StatusNotFound, "Dataset not found")
		return
	case errors.Is(err, knn.ErrNoReferenceData):
		h.count(models.OutcomeRejected)
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, "Dataset has no rows to compare against")
		return
	case err != nil:
		h.logger.Error("estimate failed", zap.String("dataset_id", id), zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to compute estimate")
		return
	}

	h.count(models.OutcomeSuccess)
	middleware.JSONResponse(w, http.StatusOK, models.EstimateResponse{DatasetID: id, Result: res})
}

func (h *DatasetHandler) count(outcome string) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.Estimate(outcome)
	}
}

// estimate runs the nearest-neighbour estimator against a stored dataset
func estimate(ctx context.Context, store *db.DatasetStore, id string, q knn.Query) (knn.Result, error) {
	samples, err := store.Samples(ctx, id)
	if err != nil {
		return knn.Result{}, err
	}
	res, err := knn.Estimate(q, samples, knn.WineFeatures, knn.DefaultK)
	if err != nil {
		return knn.Result{}, fmt.Errorf("dataset %s: %w", id, err)
	}
	return res, nil
}

// wineQuery reads the eleven wine features, failing if any is missing or
// not a finite number
func wineQuery(values map[string]any) (knn.Query, bool) {
	q := make(knn.Query, len(knn.WineFeatures))
	for _, f := range knn.WineFeatures {
		v, ok := number(values[f])
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		q[f] = v
	}
	return q, true
}
