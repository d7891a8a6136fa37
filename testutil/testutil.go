// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/danielhkuo/quickly-predict/cliparse"
	"github.com/danielhkuo/quickly-predict/db"
)

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// It is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:test-%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := db.Open(db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:            3318,
		DatabaseType:    db.DriverSQLite,
		UpstreamURL:     "http://127.0.0.1:5000",
		UpstreamTimeout: 2 * time.Second,
		SheetKeyColumn:  "row_key",
		AllowedOrigins:  []string{"*"},
		Env:             "development",
		SonarSeed:       42,
	}
}

// Logger returns a logger that writes through t.Log
func Logger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

// TrendRows is a small social-trends sheet: a header and three posts
func TrendRows() [][]any {
	return [][]any{
		{"Platform", "Text", "Likes", "Retweets"},
		{"Twitter", "Hello world", 10, 3},
		{"Instagram", "Sunset", 25, 7},
		{"twitter", "Launch day", 40, 12},
	}
}

// WriteWorkbook saves rows to a new workbook at path. A nil rows slice
// produces a workbook with an empty first sheet.
func WriteWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("Failed to name cell: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("Failed to write row %d: %v", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}
}

// WineHeader is the column order of the UCI red wine file
var WineHeader = []string{
	"fixed acidity", "volatile acidity", "citric acid", "residual sugar",
	"chlorides", "free sulfur dioxide", "total sulfur dioxide", "density",
	"pH", "sulphates", "alcohol", "quality",
}

// WineCSV builds a semicolon-separated wine file. Each row holds the eleven
// feature values followed by quality.
func WineCSV(rows ...[]float64) string {
	var b strings.Builder
	b.WriteString(`"` + strings.Join(WineHeader, `";"`) + `"` + "\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		b.WriteString(strings.Join(cells, ";"))
		b.WriteString("\n")
	}
	return b.String()
}

// WineRow returns a row whose features all equal x, labelled quality
func WineRow(x, quality float64) []float64 {
	row := make([]float64, 0, len(WineHeader))
	for range len(WineHeader) - 1 {
		row = append(row, x)
	}
	return append(row, quality)
}

// FakeUpstream starts a prediction service serving routes ("METHOD /path"
// patterns). It is shut down when the test ends.
func FakeUpstream(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// RespondJSON writes v as a JSON body with the given status
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
