// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// Statements run one at a time; both drivers accept this subset of SQL.
var schema = []string{
	// Uploaded reference sets
	`CREATE TABLE IF NOT EXISTS dataset (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    columns TEXT NOT NULL,
    row_count INTEGER NOT NULL,
    created_at BIGINT NOT NULL
)`,

	// One row per sample, payload is a JSON object of column -> value
	`CREATE TABLE IF NOT EXISTS sample (
    dataset_id TEXT NOT NULL REFERENCES dataset(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    payload TEXT NOT NULL,
    PRIMARY KEY (dataset_id, position)
)`,

	`CREATE INDEX IF NOT EXISTS idx_dataset_created_at ON dataset(created_at)`,
}
