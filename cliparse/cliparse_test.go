// cliparse/cliparse_test.go
package cliparse

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_Defaults(t *testing.T) {
	cfg, err := ParseFlags([]string{})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "http://127.0.0.1:5000", cfg.UpstreamURL)
	assert.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, "row_key", cfg.SheetKeyColumn)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "development", cfg.Env)
}

func TestParseFlags_EnvVars(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PREDICT_API_URL", "http://models:5000")
	t.Setenv("UPSTREAMS", "fraud=http://fraud:8000,thyroid=http://thyroid:8001")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	t.Setenv("WATCH_SHEET", "true")
	t.Setenv("SONAR_SEED", "42")

	cfg, err := ParseFlags([]string{})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "http://models:5000", cfg.UpstreamURL)
	assert.Equal(t, map[string]string{"fraud": "http://fraud:8000", "thyroid": "http://thyroid:8001"}, cfg.UpstreamOverrides)
	assert.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.True(t, cfg.WatchSheet)
	assert.Equal(t, uint64(42), cfg.SonarSeed)
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{"-p", "8081", "--sheet", "trends.xlsx"})
	require.NoError(t, err)

	// CLI should override env
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "trends.xlsx", cfg.SheetPath)
}

func TestParseFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"bad port env", map[string]string{"PORT": "abc"}, nil},
		{"port out of range", nil, []string{"-p", "70000"}},
		{"unknown database", nil, []string{"-t", "mysql"}},
		{"postgres without url", nil, []string{"-t", "postgres"}},
		{"bad upstream url", nil, []string{"--predict-api-url", "not a url"}},
		{"bad override url", nil, []string{"--upstream", "fraud=nope"}},
		{"zero timeout", nil, []string{"--upstream-timeout", "0s"}},
		{"bad env", nil, []string{"--env", "staging"}},
		{"bad log level", nil, []string{"--log-level", "loud"}},
		{"unknown flag", nil, []string{"--nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := ParseFlags(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SHEET_KEY_COLUMN=post_id\nLOG_LEVEL=warn\n"), 0o600))

	// Already-set variables win over the file.
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SHEET_KEY_COLUMN", "")
	os.Unsetenv("SHEET_KEY_COLUMN")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "post_id", os.Getenv("SHEET_KEY_COLUMN"))
	assert.Equal(t, "error", os.Getenv("LOG_LEVEL"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
