// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the dataset database and stores uploaded reference sets.

# Connecting

Open supports SQLite (modernc.org/sqlite, no cgo) and PostgreSQL (lib/pq):

	conn, err := db.Open(db.DriverSQLite, "")            // in-memory
	conn, err := db.Open(db.DriverPostgres, databaseURL)

Queries are written with ? placeholders and passed through Rebind, which
rewrites them to $1, $2, ... for PostgreSQL.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - dataset: one uploaded CSV (name, column list as JSON, row count)
  - sample: one row of a dataset, payload is a JSON object

# Relationships

	dataset 1──* sample

Samples are deleted with their dataset (ON DELETE CASCADE).

# Datasets

	store := db.NewDatasetStore(conn, cfg.DatabaseType)
	ds, err := store.Create(ctx, "winequality-red.csv", columns, samples)
	refs, err := store.Samples(ctx, ds.ID)
*/
package db
