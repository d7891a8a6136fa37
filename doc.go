// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Quickly Predict API server.

Quickly Predict is the backend shared by a set of small ML demo frontends
(sonar, restaurant and movie ratings, electricity load, wine quality, car
price, spam, fraud, diabetes, thyroid and social media trends). It
validates and packages form input, forwards it to the external prediction
services, and runs the few models that live locally.

# Starting the Server

With no arguments the binary serves on port 8080:

	go run .

Or with flags:

	go run . serve -p 8080 --predict-api-url http://ml:5000 --sheet trends.xlsx

# Commands

  - serve: run the HTTP API (default)
  - estimate: run the wine nearest-neighbour estimator over a CSV
  - sheet: list workbook rows with their stable keys

# Configuration

All settings are optional. The most common ones:

  - PORT (-p): Server port (default: 8080)
  - PREDICT_API_URL (--predict-api-url): Base URL of the prediction services
  - UPSTREAMS (--upstream): Per-app base URLs, e.g. fraud=http://fraud:5000
  - SHEET_PATH (--sheet): Workbook for the trends editor
  - DATABASE_TYPE, DATABASE_URL: Dataset store (default: in-memory sqlite)

See package cliparse for the full list.

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (apps, datasets, trends)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, metrics, JSON helpers
  - models: Request/response types
  - forms: App registry, validation and the form state machine
  - upstream: Prediction service client with per-app circuit breakers
  - knn: Nearest-neighbour estimator and CSV parsing
  - sonar: Mock mine/rock classifier
  - sheet: Key-addressed spreadsheet editing
  - db: Dataset storage (sqlite or postgres)
  - logging, metrics: zap and Prometheus setup
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
