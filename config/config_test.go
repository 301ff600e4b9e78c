package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tocscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "NY_", cfg.SelectionFilter().Substring)
	assert.Equal(t, FormatText, cfg.Output.Format)
	assert.Equal(t, int64(10000), cfg.ProgressEvery)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
filter:
  location_substring: CA_
output:
  format: parquet
  path: out.parquet
postgres:
  url: postgres://localhost/toc
  init_schema: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "CA_", cfg.Filter.LocationSubstring)
	assert.Equal(t, FormatParquet, cfg.Output.Format)
	assert.Equal(t, "out.parquet", cfg.Output.Path)
	assert.Equal(t, "postgres://localhost/toc", cfg.Postgres.URL)
	assert.True(t, cfg.Postgres.InitSchema)

	// Unset keys keep defaults
	assert.Equal(t, 64, cfg.Input.BufferMB)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := map[string]string{
		"bad yaml":          "filter: [",
		"empty filter":      "filter:\n  location_substring: \"\"\n",
		"unknown format":    "output:\n  format: csv\n",
		"parquet no path":   "output:\n  format: parquet\n",
		"zero buffer":       "input:\n  buffer_mb: 0\n",
		"negative progress": "progress_every: -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
