// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/quickly-predict/forms"
	"github.com/danielhkuo/quickly-predict/metrics"
	"github.com/danielhkuo/quickly-predict/sonar"
	"github.com/danielhkuo/quickly-predict/testutil"
	"github.com/danielhkuo/quickly-predict/upstream"
)

// newDeps wires the default registry against a prediction service at base
func newDeps(t *testing.T, base string) Deps {
	t.Helper()

	reg, err := forms.Default()
	require.NoError(t, err)
	reg.ApplyUpstreams(base, nil)

	logger := testutil.Logger(t)
	m := metrics.New()

	return Deps{
		Registry:   reg,
		Upstream:   upstream.New(2*time.Second, logger, upstream.WithMetrics(m)),
		Classifier: sonar.NewSeeded(42),
		Metrics:    m,
		Logger:     logger,
	}
}

// withPath sets path values the way the router would
func withPath(r *http.Request, kv ...string) *http.Request {
	for i := 0; i+1 < len(kv); i += 2 {
		r.SetPathValue(kv[i], kv[i+1])
	}
	return r
}
