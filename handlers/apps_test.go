// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/quickly-predict/db"
	"github.com/danielhkuo/quickly-predict/forms"
	"github.com/danielhkuo/quickly-predict/knn"
	"github.com/danielhkuo/quickly-predict/models"
	"github.com/danielhkuo/quickly-predict/sonar"
	"github.com/danielhkuo/quickly-predict/testutil"
)

func newAppHandler(t *testing.T, base string) (*AppHandler, Deps) {
	t.Helper()
	deps := newDeps(t, base)
	conn := testutil.SetupTestDB(t)
	return NewAppHandler(conn, testutil.GetTestConfig(), deps), deps
}

func predict(h *AppHandler, app, query string, inputs map[string]any) *httptest.ResponseRecorder {
	req := testutil.MakeRequest("POST", "/api/apps/"+app+"/predict"+query, models.PredictRequest{Inputs: inputs}, nil)
	w := httptest.NewRecorder()
	h.Predict(w, withPath(req, "app", app))
	return w
}

func thyroidInputs() map[string]any {
	return map[string]any{"age": "45", "tsh": 2.5, "t3": "120", "t4": "8", "gender": "female"}
}

func TestListApps(t *testing.T) {
	h, _ := newAppHandler(t, "http://127.0.0.1:1")

	w := httptest.NewRecorder()
	h.ListApps(w, httptest.NewRequest("GET", "/api/apps", nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	var apps []models.AppSummary
	testutil.AssertJSON(t, w, &apps)

	require.Len(t, apps, 11)
	assert.Equal(t, "sonar", apps[0].Name)
	assert.Equal(t, forms.EngineMockLogistic, apps[0].Engine)

	for _, a := range apps {
		assert.Equal(t, a.Name == "diabetes", a.HasHealth, a.Name)
	}
}

func TestGetApp(t *testing.T) {
	h, _ := newAppHandler(t, "http://127.0.0.1:1")

	t.Run("known app", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.GetApp(w, withPath(httptest.NewRequest("GET", "/api/apps/thyroid", nil), "app", "thyroid"))

		testutil.AssertStatus(t, w, http.StatusOK)
		var app forms.App
		testutil.AssertJSON(t, w, &app)
		assert.Equal(t, "Thyroid Condition", app.Title)
		require.Len(t, app.Fields, 5)
		assert.Equal(t, []string{"male", "female"}, app.Fields[4].Options)
	})

	t.Run("unknown app", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.GetApp(w, withPath(httptest.NewRequest("GET", "/api/apps/nope", nil), "app", "nope"))
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}

func TestPredict_ValidationFailure(t *testing.T) {
	called := false
	srv := testutil.FakeUpstream(t, map[string]http.HandlerFunc{
		"POST /api/predict": func(w http.ResponseWriter, r *http.Request) { called = true },
	})
	h, deps := newAppHandler(t, srv.URL)

	w := predict(h, "thyroid", "", map[string]any{"age": "12", "tsh": "abc", "gender": "other"})

	testutil.AssertStatus(t, w, http.StatusBadRequest)
	var sub forms.Submission
	testutil.AssertJSON(t, w, &sub)

	assert.Equal(t, forms.StateIdle, sub.State)
	assert.Empty(t, sub.Error)
	assert.Contains(t, sub.Errors, forms.FieldError{Field: "age", Message: "Age must be between 18 and 100"})
	assert.Contains(t, sub.Errors, forms.FieldError{Field: "tsh", Message: "TSH must be a number"})
	assert.Contains(t, sub.Errors, forms.FieldError{Field: "t3", Message: "T3 is required"})
	assert.Contains(t, sub.Errors, forms.FieldError{Field: "gender", Message: "Gender must be one of the listed options"})
	assert.False(t, called, "invalid input must not reach the service")
	assert.Equal(t, 1.0, promtestutil.ToFloat64(deps.Metrics.Predictions.WithLabelValues("thyroid", models.OutcomeInvalid)))
}

func TestPredict_Remote(t *testing.T) {
	var got map[string]any
	srv := testutil.FakeUpstream(t, map[string]http.HandlerFunc{
		"POST /api/predict": func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			testutil.RespondJSON(w, http.StatusOK, map[string]any{"prediction": "negative", "confidence": 0.91})
		},
	})
	h, deps := newAppHandler(t, srv.URL)

	w := predict(h, "thyroid", "", thyroidInputs())

	testutil.AssertStatus(t, w, http.StatusOK)
	var sub forms.Submission
	testutil.AssertJSON(t, w, &sub)

	assert.Equal(t, forms.StateResult, sub.State)
	assert.Equal(t, "negative", sub.Result["prediction"])
	assert.Equal(t, 0.91, sub.Result["confidence"])

	// Numbers arrive as numbers, not the strings typed into the form
	assert.Equal(t, 45.0, got["age"])
	assert.Equal(t, 120.0, got["t3"])
	assert.Equal(t, "female", got["gender"])
	assert.Equal(t, 1.0, promtestutil.ToFloat64(deps.Metrics.Predictions.WithLabelValues("thyroid", models.OutcomeSuccess)))
}

func TestPredict_UpstreamErrors(t *testing.T) {
	fraudInputs := map[string]any{"amount": "120.5", "time": "10", "v1": "0", "v2": "0", "v3": "0", "v4": "0", "v5": "0"}

	testCases := []struct {
		name       string
		app        string
		path       string
		inputs     map[string]any
		status     int
		body       map[string]any
		wantStatus int
		wantError  string
	}{
		{
			name:       "surfaced service message",
			app:        "fraud",
			path:       "POST /api/predict",
			inputs:     fraudInputs,
			status:     http.StatusBadRequest,
			body:       map[string]any{"error": "Amount exceeds card limit"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Amount exceeds card limit",
		},
		{
			name:       "surfacing app without service message",
			app:        "fraud",
			path:       "POST /api/predict",
			inputs:     fraudInputs,
			status:     http.StatusInternalServerError,
			body:       map[string]any{"detail": "stack trace"},
			wantStatus: http.StatusBadGateway,
			wantError:  "Error making prediction.",
		},
		{
			name:       "fixed message hides service message",
			app:        "thyroid",
			path:       "POST /api/predict",
			inputs:     thyroidInputs(),
			status:     http.StatusInternalServerError,
			body:       map[string]any{"error": "model not loaded"},
			wantStatus: http.StatusBadGateway,
			wantError:  forms.DefaultErrorMessage,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := testutil.FakeUpstream(t, map[string]http.HandlerFunc{
				tc.path: func(w http.ResponseWriter, r *http.Request) {
					testutil.RespondJSON(w, tc.status, tc.body)
				},
			})
			h, _ := newAppHandler(t, srv.URL)

			w := predict(h, tc.app, "", tc.inputs)

			testutil.AssertStatus(t, w, tc.wantStatus)
			var sub forms.Submission
			testutil.AssertJSON(t, w, &sub)
			assert.Equal(t, forms.StateError, sub.State)
			assert.Equal(t, tc.wantError, sub.Error)
			assert.Nil(t, sub.Result)
		})
	}
}

func TestPredict_UpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	h, deps := newAppHandler(t, base)

	w := predict(h, "movie", "", map[string]any{
		"genre": "Drama", "director": "Someone", "budget": "1000000", "year": "2001", "runtime": "120",
	})

	testutil.AssertStatus(t, w, http.StatusBadGateway)
	var sub forms.Submission
	testutil.AssertJSON(t, w, &sub)
	assert.Equal(t, forms.StateError, sub.State)
	assert.Equal(t, "Error occurred while predicting.", sub.Error)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(deps.Metrics.Predictions.WithLabelValues("movie", models.OutcomeUnavailable)))
}

func TestPredict_GetWithPathTemplate(t *testing.T) {
	var gotPath string
	srv := testutil.FakeUpstream(t, map[string]http.HandlerFunc{
		"GET /predict_likes/{retweets}": func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			testutil.RespondJSON(w, http.StatusOK, map[string]any{"retweets": 42, "predicted_likes": 130})
		},
	})
	h, _ := newAppHandler(t, srv.URL)

	w := predict(h, "trends", "", map[string]any{"retweets": 42})

	testutil.AssertStatus(t, w, http.StatusOK)
	var sub forms.Submission
	testutil.AssertJSON(t, w, &sub)
	assert.Equal(t, "/predict_likes/42", gotPath)
	assert.Equal(t, 130.0, sub.Result["predicted_likes"])
}

func TestPredict_MockSonar(t *testing.T) {
	h, deps := newAppHandler(t, "http://127.0.0.1:1")
	app, _ := deps.Registry.Get("sonar")

	for _, sample := range []string{"mine", "rock"} {
		t.Run(sample, func(t *testing.T) {
			w := predict(h, "sonar", "", map[string]any{"values": app.Samples[sample]})

			testutil.AssertStatus(t, w, http.StatusOK)
			var sub forms.Submission
			testutil.AssertJSON(t, w, &sub)

			x, msg := forms.ParseVector(app.Samples[sample], sonar.FeatureCount)
			require.Empty(t, msg)
			want, err := sonar.NewSeeded(42).Predict(x)
			require.NoError(t, err)

			assert.Equal(t, want.Label, sub.Result["prediction"])
			assert.Equal(t, want.Title, sub.Result["title"])
			conf := sub.Result["confidence"].(float64)
			assert.GreaterOrEqual(t, conf, 0.6)
			assert.LessOrEqual(t, conf, 0.95)
		})
	}

	t.Run("wrong arity", func(t *testing.T) {
		w := predict(h, "sonar", "", map[string]any{"values": strings.Repeat("0.1,", 58) + "0.1"})

		testutil.AssertStatus(t, w, http.StatusBadRequest)
		var sub forms.Submission
		testutil.AssertJSON(t, w, &sub)
		require.Len(t, sub.Errors, 1)
		assert.Equal(t, "Expected 60 values, got 59", sub.Errors[0].Message)
	})
}

func wineSamples(rows ...[]float64) []knn.Sample {
	out := make([]knn.Sample, len(rows))
	for i, row := range rows {
		s := make(knn.Sample, len(row))
		for j, col := range testutil.WineHeader {
			s[col] = row[j]
		}
		out[i] = s
	}
	return out
}

func wineInputs(x string) map[string]any {
	in := make(map[string]any, len(knn.WineFeatures))
	for _, f := range knn.WineFeatures {
		in[f] = x
	}
	return in
}

func TestPredict_Wine(t *testing.T) {
	deps := newDeps(t, "http://127.0.0.1:1")
	conn := testutil.SetupTestDB(t)
	h := NewAppHandler(conn, testutil.GetTestConfig(), deps)

	store := db.NewDatasetStore(conn, db.DriverSQLite)
	ds, err := store.Create(context.Background(), "red", testutil.WineHeader, wineSamples(
		testutil.WineRow(1, 5),
		testutil.WineRow(1, 5),
		testutil.WineRow(100, 3),
		testutil.WineRow(1, 6),
		testutil.WineRow(1, 6),
		testutil.WineRow(1, 7),
	))
	require.NoError(t, err)

	t.Run("nearest five", func(t *testing.T) {
		w := predict(h, "wine", "?dataset="+ds.ID, wineInputs("1"))

		testutil.AssertStatus(t, w, http.StatusOK)
		var sub forms.Submission
		testutil.AssertJSON(t, w, &sub)
		assert.Equal(t, 5.8, sub.Result["predicted_quality"])
		assert.Equal(t, 5.0, sub.Result["neighbors"])
	})

	t.Run("no dataset selected", func(t *testing.T) {
		w := predict(h, "wine", "", wineInputs("1"))

		testutil.AssertStatus(t, w, http.StatusBadRequest)
		var sub forms.Submission
		testutil.AssertJSON(t, w, &sub)
		assert.Equal(t, msgNoDataset, sub.Error)
	})

	t.Run("unknown dataset", func(t *testing.T) {
		w := predict(h, "wine", "?dataset=missing", wineInputs("1"))
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})

	t.Run("missing feature", func(t *testing.T) {
		in := wineInputs("1")
		delete(in, "alcohol")
		w := predict(h, "wine", "?dataset="+ds.ID, in)

		testutil.AssertStatus(t, w, http.StatusBadRequest)
		var sub forms.Submission
		testutil.AssertJSON(t, w, &sub)
		assert.Equal(t, forms.StateIdle, sub.State)
		assert.Contains(t, sub.Errors, forms.FieldError{Field: "alcohol", Message: "Alcohol is required"})
	})
}

func TestPredict_InvalidJSON(t *testing.T) {
	h, _ := newAppHandler(t, "http://127.0.0.1:1")

	req := httptest.NewRequest("POST", "/api/apps/spam/predict", strings.NewReader("{nope"))
	w := httptest.NewRecorder()
	h.Predict(w, withPath(req, "app", "spam"))

	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestHealth(t *testing.T) {
	srv := testutil.FakeUpstream(t, map[string]http.HandlerFunc{
		"GET /health": func(w http.ResponseWriter, r *http.Request) {
			testutil.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		},
	})
	h, _ := newAppHandler(t, srv.URL)

	t.Run("diabetes", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Health(w, withPath(httptest.NewRequest("GET", "/api/apps/diabetes/health", nil), "app", "diabetes"))

		testutil.AssertStatus(t, w, http.StatusOK)
		var res models.UpstreamHealth
		testutil.AssertJSON(t, w, &res)
		assert.Equal(t, models.UpstreamHealth{App: "diabetes", Status: "ok"}, res)
	})

	t.Run("app without health check", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Health(w, withPath(httptest.NewRequest("GET", "/api/apps/spam/health", nil), "app", "spam"))
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}

func TestUpstreamsHealth(t *testing.T) {
	srv := testutil.FakeUpstream(t, map[string]http.HandlerFunc{
		"GET /health": func(w http.ResponseWriter, r *http.Request) {
			testutil.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "warming up"})
		},
	})
	h, _ := newAppHandler(t, srv.URL)

	w := httptest.NewRecorder()
	h.UpstreamsHealth(w, httptest.NewRequest("GET", "/api/upstreams/health", nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	var res []models.UpstreamHealth
	testutil.AssertJSON(t, w, &res)
	require.Len(t, res, 1)
	assert.Equal(t, "diabetes", res[0].App)
	assert.Equal(t, "unavailable", res[0].Status)
	assert.Contains(t, res[0].Error, "warming up")
}

func TestMetadata(t *testing.T) {
	t.Run("features and examples", func(t *testing.T) {
		srv := testutil.FakeUpstream(t, map[string]http.HandlerFunc{
			"GET /api/features": func(w http.ResponseWriter, r *http.Request) {
				testutil.RespondJSON(w, http.StatusOK, []string{"amount", "time"})
			},
			"GET /api/example-values": func(w http.ResponseWriter, r *http.Request) {
				testutil.RespondJSON(w, http.StatusOK, map[string]any{"legit": map[string]float64{"amount": 12}})
			},
		})
		h, _ := newAppHandler(t, srv.URL)

		w := httptest.NewRecorder()
		h.Metadata(w, withPath(httptest.NewRequest("GET", "/api/apps/fraud/metadata", nil), "app", "fraud"))

		testutil.AssertStatus(t, w, http.StatusOK)
		var meta models.AppMetadata
		testutil.AssertJSON(t, w, &meta)
		assert.Equal(t, []any{"amount", "time"}, meta.Features)
		assert.Equal(t, map[string]any{"legit": map[string]any{"amount": 12.0}}, meta.Examples)
	})

	t.Run("one call fails", func(t *testing.T) {
		srv := testutil.FakeUpstream(t, map[string]http.HandlerFunc{
			"GET /api/features": func(w http.ResponseWriter, r *http.Request) {
				testutil.RespondJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
			},
			"GET /api/example-values": func(w http.ResponseWriter, r *http.Request) {
				testutil.RespondJSON(w, http.StatusOK, map[string]any{})
			},
		})
		h, _ := newAppHandler(t, srv.URL)

		w := httptest.NewRecorder()
		h.Metadata(w, withPath(httptest.NewRequest("GET", "/api/apps/fraud/metadata", nil), "app", "fraud"))

		testutil.AssertStatus(t, w, http.StatusBadGateway)
		var resp models.ErrorResponse
		testutil.AssertJSON(t, w, &resp)
		assert.Equal(t, "Error making prediction.", resp.Message)
	})

	t.Run("app without metadata", func(t *testing.T) {
		h, _ := newAppHandler(t, "http://127.0.0.1:1")

		w := httptest.NewRecorder()
		h.Metadata(w, withPath(httptest.NewRequest("GET", "/api/apps/spam/metadata", nil), "app", "spam"))
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}
