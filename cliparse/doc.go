// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Commands that own their flag set bind and resolve in two steps:

	cliparse.BindFlags(cmd.Flags(), &cfg)
	// after parsing
	err := cliparse.Resolve(cmd.Flags(), &cfg)

# CLI Flags

	-p, --port             Server port (default: 8080)
	-d, --database-url     Database URL (empty: in-memory sqlite)
	-t, --database-type    sqlite or postgres
	--apps                 YAML file replacing the built-in app registry
	--predict-api-url      Default base URL of the prediction services
	--upstream app=url     Per-app base URL (repeatable)
	--upstream-timeout     Timeout of one prediction call (default: 10s)
	--sheet                Workbook served by the trends API
	--sheet-key-column     Column holding stable row keys (default: row_key)
	--watch-sheet          Reload the workbook when it changes on disk
	--cors-origins         Allowed CORS origins
	--log-level            debug, info, warn or error
	--env                  development or production
	--sonar-seed           Seed of the mock sonar classifier

# Environment Variables

Flags fall back to environment variables:

	PORT             → -p
	DATABASE_URL     → -d
	DATABASE_TYPE    → -t
	APPS_FILE        → --apps
	PREDICT_API_URL  → --predict-api-url
	UPSTREAMS        → --upstream
	UPSTREAM_TIMEOUT → --upstream-timeout
	SHEET_PATH       → --sheet
	SHEET_KEY_COLUMN → --sheet-key-column
	WATCH_SHEET      → --watch-sheet
	CORS_ORIGINS     → --cors-origins
	LOG_LEVEL        → --log-level
	APP_ENV          → --env
	SONAR_SEED       → --sonar-seed

CLI flags take precedence over environment variables, which take
precedence over a .env file in the working directory.

# Validation

The resolved Config is checked with validator struct tags:

  - DATABASE_URL must be provided for postgres
  - PREDICT_API_URL and every per-app URL must be http(s) URLs
  - UPSTREAM_TIMEOUT must be positive
*/
package cliparse
