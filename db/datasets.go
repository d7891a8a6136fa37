// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/quickly-predict/knn"
	"github.com/danielhkuo/quickly-predict/models"
)

var ErrNotFound = errors.New("dataset not found")

// DatasetStore keeps uploaded reference sets.
type DatasetStore struct {
	db     *sql.DB
	driver string
}

func NewDatasetStore(db *sql.DB, driver string) *DatasetStore {
	return &DatasetStore{db: db, driver: driver}
}

func (s *DatasetStore) q(query string) string {
	return Rebind(s.driver, query)
}

// Create stores a dataset and its samples in one transaction.
func (s *DatasetStore) Create(ctx context.Context, name string, columns []string, samples []knn.Sample) (models.Dataset, error) {
	ds := models.Dataset{
		ID:        uuid.NewString(),
		Name:      name,
		Columns:   columns,
		Rows:      len(samples),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	cols, err := json.Marshal(columns)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("failed to encode columns: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO dataset (id, name, columns, row_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), ds.ID, ds.Name, string(cols), ds.Rows, ds.CreatedAt.Unix())
	if err != nil {
		return models.Dataset{}, fmt.Errorf("failed to insert dataset: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO sample (dataset_id, position, payload) VALUES (?, ?, ?)
	`))
	if err != nil {
		return models.Dataset{}, fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for i, sample := range samples {
		payload, err := json.Marshal(sample)
		if err != nil {
			return models.Dataset{}, fmt.Errorf("failed to encode sample %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, ds.ID, i, string(payload)); err != nil {
			return models.Dataset{}, fmt.Errorf("failed to insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Dataset{}, fmt.Errorf("failed to commit dataset: %w", err)
	}
	return ds, nil
}

// Get returns dataset metadata.
func (s *DatasetStore) Get(ctx context.Context, id string) (models.Dataset, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, name, columns, row_count, created_at FROM dataset WHERE id = ?
	`), id)

	ds, err := scanDataset(row)
	if err == sql.ErrNoRows {
		return models.Dataset{}, ErrNotFound
	}
	return ds, err
}

// List returns all datasets, newest first.
func (s *DatasetStore) List(ctx context.Context) ([]models.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, columns, row_count, created_at FROM dataset ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	out := []models.Dataset{}
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// Samples returns a dataset's rows in upload order.
func (s *DatasetStore) Samples(ctx context.Context, id string) ([]knn.Sample, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT payload FROM sample WHERE dataset_id = ? ORDER BY position
	`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []knn.Sample
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		var sample knn.Sample
		if err := json.Unmarshal([]byte(payload), &sample); err != nil {
			return nil, fmt.Errorf("failed to decode sample: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(sc scanner) (models.Dataset, error) {
	var (
		ds      models.Dataset
		cols    string
		created int64
	)
	if err := sc.Scan(&ds.ID, &ds.Name, &cols, &ds.Rows, &created); err != nil {
		if err == sql.ErrNoRows {
			return models.Dataset{}, err
		}
		return models.Dataset{}, fmt.Errorf("failed to scan dataset: %w", err)
	}
	if err := json.Unmarshal([]byte(cols), &ds.Columns); err != nil {
		return models.Dataset{}, fmt.Errorf("failed to decode columns: %w", err)
	}
	ds.CreatedAt = time.Unix(created, 0).UTC()
	return ds, nil
}
