package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "/data/incoming", cfg.AllowedBaseDir)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.ERPNext.Timeout)
	assert.Equal(t, 2, cfg.Import.Workers)
	assert.Equal(t, 1000, cfg.Import.QueueSize)
	assert.Equal(t, int64(10<<20), cfg.Import.MaxUploadBytes)
	assert.Equal(t, 3, cfg.Import.AutoFixMaxRetries)
	assert.Equal(t, "/metrics", cfg.MetricsPath)
	assert.False(t, cfg.UsesDatabase())
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/importer")
	t.Setenv("IMPORT_WORKERS", "4")
	t.Setenv("ERPNEXT_TIMEOUT", "5s")
	t.Setenv("ERPNEXT_BASE_URL", "https://erp.example.com")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.UsesDatabase())
	assert.Equal(t, 4, cfg.Import.Workers)
	assert.Equal(t, 5*time.Second, cfg.ERPNext.Timeout)
	assert.Equal(t, "https://erp.example.com", cfg.ERPNext.BaseURL)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"IMPORT_WORKERS":      "0",
		"IMPORT_QUEUE_SIZE":   "0",
		"MAX_UPLOAD_BYTES":    "-1",
		"AUTOFIX_MAX_RETRIES": "0",
		"LOG_FORMAT":          "xml",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Parse()
			assert.Error(t, err)
		})
	}

	t.Run("malformed duration", func(t *testing.T) {
		t.Setenv("SHUTDOWN_TIMEOUT", "soon")
		_, err := Parse()
		assert.Error(t, err)
	})
}

func TestLoadEnvSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("IMPORTER_TEST_ONLY_KEY=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("IMPORTER_TEST_ONLY_KEY") })

	n, err := LoadEnv([]string{path, filepath.Join(dir, ".env.local")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "from-file", os.Getenv("IMPORTER_TEST_ONLY_KEY"))

	n, err = LoadEnv([]string{filepath.Join(dir, "nope")})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
