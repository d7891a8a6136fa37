// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sheet

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Update writes the changed cells of one row back into the workbook. entry
// maps column names to new values; columns not named keep their value. It
// reports whether anything changed, and leaves the file untouched if not.
func (s *Store) Update(key string, entry map[string]string) (Row, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byKey[key]
	if !ok {
		return Row{}, false, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	row := s.rows[i]

	changes := make(map[string]string)
	for col, v := range entry {
		if col == s.keyColumn {
			if v != key {
				return Row{}, false, ErrKeyChange
			}
			continue
		}
		if !slices.Contains(s.columns, col) {
			return Row{}, false, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
		if row.Values[col] != v {
			changes[col] = v
		}
	}
	if len(changes) == 0 {
		return row.clone(), false, nil
	}

	if err := s.edit(key, changes); err != nil {
		return Row{}, false, err
	}
	for col, v := range changes {
		row.Values[col] = v
	}

	s.count("update")
	s.logger.Info("row updated", zap.String("key", key), zap.Int("cells", len(changes)))
	return row.clone(), true, nil
}

// Like adds one to the row's like count and returns the new count.
func (s *Store) Like(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byKey[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if !slices.Contains(s.columns, LikesColumn) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownColumn, LikesColumn)
	}
	row := s.rows[i]

	var likes int64
	if raw := strings.TrimSpace(row.Values[LikesColumn]); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q", ErrNotNumeric, LikesColumn, raw)
		}
		likes = int64(v)
	}
	likes++

	next := strconv.FormatInt(likes, 10)
	if err := s.edit(key, map[string]string{LikesColumn: next}); err != nil {
		return 0, err
	}
	row.Values[LikesColumn] = next

	s.count("like")
	return likes, nil
}

// edit opens the workbook, finds the row by key in the file itself and sets
// the given cells. Callers hold s.mu.
func (s *Store) edit(key string, changes map[string]string) error {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	grid, err := f.GetRows(s.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("failed to read sheet %q: %w", s.sheet, err)
	}
	if len(grid) == 0 {
		return ErrEmptyWorkbook
	}

	header := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		header[i] = strings.TrimSpace(h)
	}
	keyIdx := indexOf(header, s.keyColumn)
	if keyIdx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, s.keyColumn)
	}

	line := 0
	for i, rec := range grid[1:] {
		if strings.TrimSpace(cellAt(rec, keyIdx)) == key {
			line = i + 2
			break
		}
	}
	if line == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	for col, v := range changes {
		c := indexOf(header, col)
		if c < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
		cell, err := excelize.CoordinatesToCellName(c+1, line)
		if err != nil {
			return err
		}
		if err := writeCell(f, s.sheet, cell, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", cell, err)
		}
	}

	return s.save(f)
}

// writeCell keeps numeric columns numeric: values that parse as a finite
// number are stored as numbers, everything else as text. Leading zeros mark
// identifiers, which stay text.
func writeCell(f *excelize.File, sheet, cell, v string) error {
	t := strings.TrimSpace(v)
	if n, err := strconv.ParseFloat(t, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) && !leadingZero(t) {
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return f.SetCellValue(sheet, cell, int64(n))
		}
		return f.SetCellValue(sheet, cell, n)
	}
	return f.SetCellStr(sheet, cell, v)
}

func leadingZero(t string) bool {
	t = strings.TrimLeft(t, "+-")
	return len(t) > 1 && t[0] == '0' && t[1] != '.'
}

func (s *Store) count(op string) {
	if s.metrics != nil {
		s.metrics.SheetWrite(op)
	}
}
