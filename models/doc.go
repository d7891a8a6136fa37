// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - PredictRequest: inputs (field name → raw value)
  - EstimateRequest: values (wine feature → number)
  - UpdateRowRequest: values (column → cell value)
  - UpdateEntryRequest: id, updatedEntry (editor save call)

# Response Types

Types for JSON responses:

  - AppSummary: name, title, engine, has_health
  - AppMetadata: features, examples
  - UpstreamHealth: app, status, error
  - CreateDatasetResponse: dataset_id, rows, columns, stats
  - DatasetDetail, EstimateResponse
  - TrendList, UpdateRowResponse, LikeResponse, PredictedLikesResponse
  - ErrorResponse: error, message

Prediction responses are forms.Submission values.

# Domain Types

  - Dataset: an uploaded reference set
  - TrendRow: one spreadsheet row, addressed by its stable key

# Constants

Prediction outcomes, used as metric labels:

	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeRejected    = "rejected"
*/
package models
