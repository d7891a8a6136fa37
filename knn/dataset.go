// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package knn

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
)

var ErrEmptyCSV = errors.New("csv has no header row")

// ParseCSV reads an uploaded CSV into samples. The first line is the header.
// Rows where any cell fails to parse as a number are dropped, so a trailing
// blank line or a stray text row never reaches the estimator.
// Semicolon-separated files are detected from the header line.
func ParseCSV(r io.Reader) ([]string, []Sample, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if strings.TrimSpace(header) == "" {
		return nil, nil, ErrEmptyCSV
	}

	cr := csv.NewReader(io.MultiReader(strings.NewReader(header), br))
	cr.Comma = detectDelimiter(header)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse csv header: %w", err)
	}
	columns := make([]string, len(head))
	for i, h := range head {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var samples []Sample
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse csv row: %w", err)
		}
		if row, ok := parseRow(columns, rec); ok {
			samples = append(samples, row)
		}
	}

	return columns, samples, nil
}

func parseRow(columns, rec []string) (Sample, bool) {
	row := make(Sample, len(columns))
	for i, col := range columns {
		if i >= len(rec) {
			return nil, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		row[col] = v
	}
	return row, true
}

// MissingColumns lists the wine features and the label absent from columns,
// in form order.
func MissingColumns(columns []string) []string {
	var missing []string
	for _, want := range append(slices.Clone(WineFeatures), LabelColumn) {
		if !slices.Contains(columns, want) {
			missing = append(missing, want)
		}
	}
	return missing
}

func detectDelimiter(header string) rune {
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

// ColumnStats summarises one numeric column.
type ColumnStats struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// LabelCount is one bar of the label distribution.
type LabelCount struct {
	Quality float64 `json:"quality"`
	Count   int     `json:"count"`
}

// Stats describes an uploaded reference set.
type Stats struct {
	Rows         int                    `json:"rows"`
	Columns      map[string]ColumnStats `json:"columns"`
	Distribution []LabelCount           `json:"quality_distribution"`
}

// Describe computes per-column mean/min/max (rounded to 2 places) and the
// distribution of the label column.
func Describe(columns []string, samples []Sample) Stats {
	stats := Stats{
		Rows:         len(samples),
		Columns:      make(map[string]ColumnStats, len(columns)),
		Distribution: []LabelCount{},
	}
	if len(samples) == 0 {
		return stats
	}

	for _, col := range columns {
		lo, hi := math.Inf(1), math.Inf(-1)
		var sum float64
		for _, s := range samples {
			v := s[col]
			sum += v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		stats.Columns[col] = ColumnStats{
			Mean: round(sum/float64(len(samples)), 2),
			Min:  round(lo, 2),
			Max:  round(hi, 2),
		}
	}

	counts := make(map[float64]int)
	for _, s := range samples {
		if q, ok := s[LabelColumn]; ok {
			counts[q]++
		}
	}
	for q, n := range counts {
		stats.Distribution = append(stats.Distribution, LabelCount{Quality: q, Count: n})
	}
	sort.Slice(stats.Distribution, func(i, j int) bool {
		return stats.Distribution[i].Quality < stats.Distribution[j].Quality
	})

	return stats
}
