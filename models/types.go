// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"time"

	"github.com/danielhkuo/quickly-predict/forms"
	"github.com/danielhkuo/quickly-predict/knn"
)

// Prediction outcomes, used as metric labels
const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeRejected    = "rejected"
)

// Request types

// PredictRequest carries raw form input, field name -> value
type PredictRequest struct {
	Inputs map[string]any `json:"inputs"`
}

type EstimateRequest struct {
	Values map[string]any `json:"values"`
}

// UpdateEntryRequest is the editor's save payload. ID is the row key.
type UpdateEntryRequest struct {
	ID           string         `json:"id"`
	UpdatedEntry map[string]any `json:"updatedEntry"`
}

type UpdateRowRequest struct {
	Values map[string]any `json:"values"`
}

// Response types

type AppSummary struct {
	Name        string       `json:"name"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Engine      forms.Engine `json:"engine"`
	HasHealth   bool         `json:"has_health"`
}

type AppMetadata struct {
	Features any `json:"features"`
	Examples any `json:"examples"`
}

type UpstreamHealth struct {
	App    string `json:"app"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type CreateDatasetResponse struct {
	DatasetID string    `json:"dataset_id"`
	Rows      int       `json:"rows"`
	Columns   []string  `json:"columns"`
	Stats     knn.Stats `json:"stats"`
}

type DatasetDetail struct {
	Dataset Dataset   `json:"dataset"`
	Stats   knn.Stats `json:"stats"`
}

type EstimateResponse struct {
	DatasetID string `json:"dataset_id"`
	knn.Result
}

type TrendList struct {
	Columns []string   `json:"columns"`
	Rows    []TrendRow `json:"rows"`
}

type UpdateRowResponse struct {
	Row     TrendRow `json:"row"`
	Changed bool     `json:"changed"`
}

type PredictedLikesResponse struct {
	Key            string `json:"key"`
	Retweets       string `json:"retweets"`
	PredictedLikes any    `json:"predicted_likes"`
}

type LikeResponse struct {
	Key   string `json:"key"`
	Likes int64  `json:"likes"`
}

// Domain types

// TrendRow is one spreadsheet row as sent to the editor
type TrendRow struct {
	Index  int               `json:"index"`
	Key    string            `json:"key"`
	Values map[string]string `json:"values"`
}

type Dataset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Columns   []string  `json:"columns"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
