// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Quickly Predict API.

# Route Registration

NewRouter returns the full handler chain (request id, panic recovery,
CORS, then a Go 1.22+ http.ServeMux):

	handler := router.NewRouter(db, cfg, deps)

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

Prediction forms:

	GET  /api/apps                - App summaries
	GET  /api/apps/{app}          - Form definition and samples
	POST /api/apps/{app}/predict  - Validate, package and score
	GET  /api/apps/{app}/health   - Upstream liveness
	GET  /api/apps/{app}/metadata - Upstream features and examples
	GET  /api/upstreams/health    - Every upstream with a health path

Datasets (wine estimator):

	POST /api/datasets               - Upload CSV
	GET  /api/datasets               - List uploads
	GET  /api/datasets/{id}          - Summary statistics
	POST /api/datasets/{id}/estimate - Nearest-neighbour estimate

Spreadsheet editor:

	GET  /api/trends                           - List (?platform=, ?index=)
	GET  /api/trends/{key}                     - One row
	PUT  /api/trends/{key}                     - Save edited cells
	POST /api/updateEntry                      - Editor save call
	POST /api/trends/{key}/like                - Increment likes
	GET  /api/trends/{key}/predicted-likes     - Like prediction

API routes are wrapped with WithLogging and WithMetrics.
*/
package router
