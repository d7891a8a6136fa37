// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /api/apps", middleware.WithLogging(logger, handler))

Logs request start (method, path, remote, request_id) at debug level and
completion (status, duration_ms) at info level.

# Metrics

WithMetrics counts requests and observes latency under the route pattern,
not the raw path, so path values do not blow up label cardinality:

	middleware.WithMetrics(m, "GET /api/apps/{app}", handler)

# CORS Middleware

Enable cross-origin requests for the demo frontends:

	handler = middleware.CORS(cfg.AllowedOrigins)(mux)

Allows methods GET, POST, PUT, DELETE, OPTIONS with headers
Accept, Content-Type, Authorization, X-Request-Id. An empty origin list
allows any origin.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Parse JSON request bodies (numbers decode as json.Number, bodies are
capped at MaxBodyBytes):

	var req models.PredictRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)
*/
package middleware
