// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/quickly-predict/knn"
	"github.com/danielhkuo/quickly-predict/models"
	"github.com/danielhkuo/quickly-predict/testutil"
)

func newDatasetHandler(t *testing.T) (*DatasetHandler, Deps) {
	t.Helper()
	deps := newDeps(t, "http://127.0.0.1:1")
	return NewDatasetHandler(testutil.SetupTestDB(t), testutil.GetTestConfig(), deps), deps
}

func referenceCSV() string {
	return testutil.WineCSV(
		testutil.WineRow(1, 5),
		testutil.WineRow(1, 5),
		testutil.WineRow(1, 6),
		testutil.WineRow(1, 6),
		testutil.WineRow(1, 7),
		testutil.WineRow(50, 3),
	)
}

func upload(t *testing.T, h *DatasetHandler, csv string) models.CreateDatasetResponse {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/datasets?name=red", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	h.CreateDataset(w, req)

	testutil.AssertStatus(t, w, http.StatusCreated)
	var resp models.CreateDatasetResponse
	testutil.AssertJSON(t, w, &resp)
	return resp
}

func TestCreateDataset_RawBody(t *testing.T) {
	h, _ := newDatasetHandler(t)

	// A trailing text row is dropped like any other non-numeric row
	resp := upload(t, h, referenceCSV()+"n/a;n/a;n/a;n/a;n/a;n/a;n/a;n/a;n/a;n/a;n/a;n/a\n")

	assert.NotEmpty(t, resp.DatasetID)
	assert.Equal(t, 6, resp.Rows)
	assert.Equal(t, testutil.WineHeader, resp.Columns)
	assert.Equal(t, 6, resp.Stats.Rows)
	assert.Equal(t, knn.ColumnStats{Mean: 9.17, Min: 1, Max: 50}, resp.Stats.Columns["alcohol"])
	assert.Equal(t, []knn.LabelCount{
		{Quality: 3, Count: 1},
		{Quality: 5, Count: 2},
		{Quality: 6, Count: 2},
		{Quality: 7, Count: 1},
	}, resp.Stats.Distribution)
}

func TestCreateDataset_DropsInfiniteRows(t *testing.T) {
	h, _ := newDatasetHandler(t)

	resp := upload(t, h, referenceCSV()+"1;1;1;1;1;1;1;1;1;1;Inf;5\n-Infinity;1;1;1;1;1;1;1;1;1;1;5\n")

	assert.Equal(t, 6, resp.Rows)
	assert.Equal(t, 50.0, resp.Stats.Columns["alcohol"].Max)
}

func TestCreateDataset_Multipart(t *testing.T) {
	h, _ := newDatasetHandler(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "winequality-red.csv")
	require.NoError(t, err)
	part.Write([]byte(referenceCSV()))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/datasets", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.CreateDataset(w, req)

	testutil.AssertStatus(t, w, http.StatusCreated)
	var resp models.CreateDatasetResponse
	testutil.AssertJSON(t, w, &resp)
	assert.Equal(t, 6, resp.Rows)

	w = httptest.NewRecorder()
	h.GetDataset(w, withPath(httptest.NewRequest("GET", "/api/datasets/"+resp.DatasetID, nil), "id", resp.DatasetID))

	testutil.AssertStatus(t, w, http.StatusOK)
	var detail models.DatasetDetail
	testutil.AssertJSON(t, w, &detail)
	assert.Equal(t, "winequality-red.csv", detail.Dataset.Name)
	assert.Equal(t, 6, detail.Stats.Rows)
}

func TestCreateDataset_Rejects(t *testing.T) {
	h, _ := newDatasetHandler(t)

	testCases := []struct {
		name    string
		body    string
		message string
	}{
		{"empty body", "", "Invalid CSV: csv has no header row"},
		{"missing quality", "fixed acidity,alcohol\n7.4,9.4\n", "CSV is missing columns: "},
		{"no numeric rows", testutil.WineCSV() + "a;b;c;d;e;f;g;h;i;j;k;l\n", "CSV has no numeric rows"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.CreateDataset(w, httptest.NewRequest("POST", "/api/datasets", strings.NewReader(tc.body)))

			testutil.AssertStatus(t, w, http.StatusBadRequest)
			var resp models.ErrorResponse
			testutil.AssertJSON(t, w, &resp)
			assert.True(t, strings.HasPrefix(resp.Message, tc.message), resp.Message)
		})
	}
}

func TestCreateDataset_TooLarge(t *testing.T) {
	h, _ := newDatasetHandler(t)

	body := referenceCSV() + strings.Repeat("1;", MaxUploadBytes/2+1)
	w := httptest.NewRecorder()
	h.CreateDataset(w, httptest.NewRequest("POST", "/api/datasets", strings.NewReader(body)))

	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestListDatasets(t *testing.T) {
	h, _ := newDatasetHandler(t)
	first := upload(t, h, referenceCSV())

	w := httptest.NewRecorder()
	h.ListDatasets(w, httptest.NewRequest("GET", "/api/datasets", nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	var list []models.Dataset
	testutil.AssertJSON(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, first.DatasetID, list[0].ID)
}

func TestGetDataset_NotFound(t *testing.T) {
	h, _ := newDatasetHandler(t)

	w := httptest.NewRecorder()
	h.GetDataset(w, withPath(httptest.NewRequest("GET", "/api/datasets/missing", nil), "id", "missing"))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestEstimate(t *testing.T) {
	h, deps := newDatasetHandler(t)
	ds := upload(t, h, referenceCSV())

	query := func() map[string]any {
		values := make(map[string]any, len(knn.WineFeatures))
		for _, f := range knn.WineFeatures {
			values[f] = 1
		}
		return values
	}

	estimateReq := func(id string, values map[string]any) *httptest.ResponseRecorder {
		req := testutil.MakeRequest("POST", "/api/datasets/"+id+"/estimate", models.EstimateRequest{Values: values}, nil)
		w := httptest.NewRecorder()
		h.Estimate(w, withPath(req, "id", id))
		return w
	}

	t.Run("mean of nearest five", func(t *testing.T) {
		w := estimateReq(ds.DatasetID, query())

		testutil.AssertStatus(t, w, http.StatusOK)
		var resp models.EstimateResponse
		testutil.AssertJSON(t, w, &resp)
		assert.Equal(t, ds.DatasetID, resp.DatasetID)
		assert.Equal(t, 5.8, resp.Value)
		assert.Equal(t, 5, resp.Neighbors)
	})

	t.Run("numbers typed as text", func(t *testing.T) {
		values := query()
		values["pH"] = " 1 "
		w := estimateReq(ds.DatasetID, values)
		testutil.AssertStatus(t, w, http.StatusOK)
	})

	t.Run("missing feature", func(t *testing.T) {
		values := query()
		delete(values, "density")
		w := estimateReq(ds.DatasetID, values)

		testutil.AssertStatus(t, w, http.StatusBadRequest)
		var resp models.ErrorResponse
		testutil.AssertJSON(t, w, &resp)
		assert.Equal(t, knn.InvalidQueryMessage, resp.Message)
	})

	t.Run("non-numeric feature", func(t *testing.T) {
		values := query()
		values["alcohol"] = "strong"
		w := estimateReq(ds.DatasetID, values)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("unknown dataset", func(t *testing.T) {
		w := estimateReq("missing", query())
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/datasets/x/estimate", strings.NewReader("{"))
		w := httptest.NewRecorder()
		h.Estimate(w, withPath(req, "id", ds.DatasetID))
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	assert.Equal(t, 2.0, promtestutil.ToFloat64(deps.Metrics.Estimates.WithLabelValues(models.OutcomeSuccess)))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(deps.Metrics.Estimates.WithLabelValues(models.OutcomeInvalid)))
}
