// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Quickly Predict API.

# Handler Types

Each handler is a struct built from the database, config and shared Deps:

  - AppHandler: form definitions, predictions and upstream probes
  - DatasetHandler: wine CSV uploads and nearest-neighbour estimates
  - TrendHandler: the spreadsheet row editor

	appHandler := handlers.NewAppHandler(db, cfg, deps)
	trendHandler := handlers.NewTrendHandler(deps)

# Prediction Flow

	POST /api/apps/{app}/predict

The input is validated and packaged by the app's form definition. A
rejected form comes back with status 400, state "idle" and every field
error. A valid payload is scored by the app's engine:

  - remote: sent to the prediction service (POST, or GET with path
    placeholders such as /predict_likes/{retweets})
  - mock-logistic: the seeded sonar classifier
  - knn: the estimator over the dataset named by ?dataset=

A service that cannot be reached yields 502 and the app's fixed error
message. A service error is shown verbatim only for apps that surface
errors; a 4xx status is passed through.

# Spreadsheet Editor

Rows are addressed by their stable key, never by position:

	PUT  /api/trends/{key}   → UpdateTrend
	POST /api/updateEntry    → UpdateEntry ({"id": key, "updatedEntry": {...}})

Only changed cells are written. Without a configured workbook every
trends route answers 503.
*/
package handlers
