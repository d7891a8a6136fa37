// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package knn

import (
	"errors"
	"math"
	"sort"
)

// LabelColumn is the column holding the label averaged by the estimator.
const LabelColumn = "quality"

// DefaultK is the number of neighbours averaged per estimate.
const DefaultK = 5

// WineFeatures are the physicochemical columns compared between a query and
// the reference rows, in form order.
var WineFeatures = []string{
	"fixed acidity",
	"volatile acidity",
	"citric acid",
	"residual sugar",
	"chlorides",
	"free sulfur dioxide",
	"total sulfur dioxide",
	"density",
	"pH",
	"sulphates",
	"alcohol",
}

// InvalidQueryMessage is shown to the user when a query is rejected.
const InvalidQueryMessage = "Please fill in all fields with valid numbers"

var (
	ErrNoReferenceData = errors.New("no reference rows to compare against")
	ErrInvalidQuery    = errors.New("query has missing or non-numeric features")
	ErrInvalidK        = errors.New("k must be positive")
)

// Sample is one historical row: column name to value, label included.
type Sample map[string]float64

// Query holds the feature values entered for a new sample.
type Query map[string]float64

// Result is the outcome of a single estimate.
type Result struct {
	Value     float64 `json:"predicted_quality"`
	Neighbors int     `json:"neighbors"`
}

type neighbor struct {
	dist  float64
	label float64
}

// Estimate averages the label of the k reference rows closest to the query
// (Euclidean distance over features) and rounds it to one decimal place.
// When fewer than k rows exist, all of them are averaged.
func Estimate(query Query, refs []Sample, features []string, k int) (Result, error) {
	if k <= 0 {
		return Result{}, ErrInvalidK
	}
	if err := ValidateQuery(query, features); err != nil {
		return Result{}, err
	}
	if len(refs) == 0 {
		return Result{}, ErrNoReferenceData
	}

	arr := make([]neighbor, len(refs))
	for i, row := range refs {
		arr[i] = neighbor{dist: distance(query, row, features), label: row[LabelColumn]}
	}

	// Stable so equally distant rows keep upload order.
	sort.SliceStable(arr, func(a, b int) bool {
		return arr[a].dist < arr[b].dist
	})

	kk := min(k, len(arr))
	var sum float64
	for _, n := range arr[:kk] {
		sum += n.label
	}

	return Result{
		Value:     round(sum/float64(kk), 1),
		Neighbors: kk,
	}, nil
}

// ValidateQuery rejects queries with missing or non-finite features.
func ValidateQuery(query Query, features []string) error {
	for _, f := range features {
		v, ok := query[f]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidQuery
		}
	}
	return nil
}

func distance(q Query, row Sample, features []string) float64 {
	var sum float64
	for _, f := range features {
		d := q[f] - row[f]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
