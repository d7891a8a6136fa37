// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sheet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/danielhkuo/quickly-predict/metrics"
)

const (
	// DefaultKeyColumn holds the stable row identifiers.
	DefaultKeyColumn = "row_key"
	// PlatformColumn is searched by List.
	PlatformColumn = "Platform"
	// LikesColumn is incremented by Like.
	LikesColumn = "Likes"
)

var (
	ErrEmptyWorkbook = errors.New("workbook has no header row")
	ErrNotFound      = errors.New("row not found")
	ErrIndexRange    = errors.New("row index out of range")
	ErrUnknownColumn = errors.New("unknown column")
	ErrKeyChange     = errors.New("row key cannot be changed")
	ErrNotNumeric    = errors.New("cell is not a number")
)

// Row is one data row. Index is its position among the data rows and may
// shift when the sheet changes; Key does not.
type Row struct {
	Index  int               `json:"index"`
	Key    string            `json:"key"`
	Values map[string]string `json:"values"`

	line int
}

// Options configures a Store.
type Options struct {
	KeyColumn string
	Logger    *zap.Logger
	Metrics   *metrics.Collector
}

// Store is an in-memory copy of the first sheet of a workbook with
// key-addressed, write-through edits. Safe for concurrent use.
type Store struct {
	path      string
	keyColumn string
	logger    *zap.Logger
	metrics   *metrics.Collector

	mu      sync.RWMutex
	sheet   string
	columns []string
	rows    []Row
	byKey   map[string]int
}

// Open loads the workbook at path. Rows without a key get a fresh UUID and
// the keys are written back to the file before Open returns.
func Open(path string, opts Options) (*Store, error) {
	if opts.KeyColumn == "" {
		opts.KeyColumn = DefaultKeyColumn
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workbook path: %w", err)
	}

	s := &Store{
		path:      abs,
		keyColumn: opts.KeyColumn,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the absolute workbook path.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the workbook from disk.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() error {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	grid, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(grid) == 0 || blank(grid[0]) {
		return ErrEmptyWorkbook
	}

	header := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		header[i] = strings.TrimSpace(h)
	}

	assigned := 0
	keyIdx := indexOf(header, s.keyColumn)
	addedKeyColumn := keyIdx < 0
	if addedKeyColumn {
		// Past the widest row, so stray cells beyond the header are not
		// taken for keys
		for _, rec := range grid {
			keyIdx = max(keyIdx, len(rec))
		}
		header = append(header, make([]string, keyIdx-len(header))...)
		header = append(header, s.keyColumn)
		if err := setCell(f, sheet, keyIdx, 1, s.keyColumn); err != nil {
			return err
		}
	}

	var columns []string
	for i, h := range header {
		if i != keyIdx && h != "" {
			columns = append(columns, h)
		}
	}

	rows := make([]Row, 0, len(grid)-1)
	byKey := make(map[string]int, len(grid)-1)
	for i, rec := range grid[1:] {
		if blank(rec) {
			continue
		}
		line := i + 2

		values := make(map[string]string, len(columns))
		for c, h := range header {
			if c == keyIdx || h == "" {
				continue
			}
			values[h] = cellAt(rec, c)
		}

		key := strings.TrimSpace(cellAt(rec, keyIdx))
		if _, dup := byKey[key]; key == "" || dup {
			if dup {
				s.logger.Warn("duplicate row key replaced", zap.String("key", key), zap.Int("line", line))
			}
			key = uuid.NewString()
			if err := setCell(f, sheet, keyIdx, line, key); err != nil {
				return err
			}
			assigned++
		}

		byKey[key] = len(rows)
		rows = append(rows, Row{Index: len(rows), Key: key, Values: values, line: line})
	}

	if assigned > 0 || addedKeyColumn {
		if err := s.save(f); err != nil {
			return err
		}
		s.logger.Info("assigned row keys", zap.String("path", s.path), zap.Int("rows", assigned))
	}

	s.sheet, s.columns, s.rows, s.byKey = sheet, columns, rows, byKey
	s.logger.Debug("workbook loaded", zap.String("sheet", sheet), zap.Int("rows", len(rows)))
	return nil
}

// save writes f next to the workbook and renames it into place, so readers
// never see a half-written file.
func (s *Store) save(f *excelize.File) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".~"+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp workbook: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace workbook: %w", err)
	}
	return nil
}

// Columns returns the data column names in sheet order, key column excluded.
func (s *Store) Columns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.columns...)
}

// Len returns the number of data rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// At returns the row at a positional index.
func (s *Store) At(index int) (Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.rows) {
		return Row{}, fmt.Errorf("%w: %d", ErrIndexRange, index)
	}
	return s.rows[index].clone(), nil
}

// Get returns the row with the given key.
func (s *Store) Get(key string) (Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byKey[key]
	if !ok {
		return Row{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return s.rows[i].clone(), nil
}

// List returns the rows whose platform contains the search term, compared
// case-insensitively. An empty term returns every row.
func (s *Store) List(platform string) []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fold := cases.Fold()
	term := fold.String(strings.TrimSpace(platform))

	out := make([]Row, 0, len(s.rows))
	for _, r := range s.rows {
		if term == "" || strings.Contains(fold.String(r.Values[PlatformColumn]), term) {
			out = append(out, r.clone())
		}
	}
	return out
}

func (r Row) clone() Row {
	values := make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	r.Values = values
	return r
}

func setCell(f *excelize.File, sheet string, col, line int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col+1, line)
	if err != nil {
		return err
	}
	return f.SetCellStr(sheet, cell, value)
}

func cellAt(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
