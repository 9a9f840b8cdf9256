package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "langbuddy.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 40, cfg.WordBank.DefaultLimit)
	assert.Equal(t, 100, cfg.WordBank.MaxLimit)
	assert.Equal(t, 5, cfg.Quiz.DistractorWindows)
	assert.Equal(t, 20*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, int64(10<<20), cfg.HTTP.MaxBodyBytes)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "langbuddy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: /var/lib/langbuddy.db
ingest:
  workers: 2
  batch_size: 10
http:
  timeout: 5s
dictionary:
  url: https://example.com/topik.json.gz
`), 0o644))

	t.Setenv("LANGBUDDY_INGEST_WORKERS", "8")
	t.Setenv("LANGBUDDY_QUIZ_DISTRACTOR_PAGE_SIZE", "20")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("listen", ":8080", "")
	flags.Int("batch-size", 50, "")
	require.NoError(t, flags.Parse([]string{"--listen", "127.0.0.1:9000"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/langbuddy.db", cfg.DBPath)
	assert.Equal(t, 8, cfg.Ingest.Workers, "env beats file")
	assert.Equal(t, 10, cfg.Ingest.BatchSize, "unset flag does not beat file")
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, 20, cfg.Quiz.DistractorPageSize)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "https://example.com/topik.json.gz", cfg.Dictionary.URL)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LANGBUDDY_WORDBANK_DEFAULT_LIMIT", "500")
	_, err := Load("", nil)
	assert.ErrorContains(t, err, "wordbank limits")

	cfg := Config{DBPath: "x", Ingest: IngestConfig{Workers: 0, BatchSize: 1}}
	assert.ErrorContains(t, cfg.Validate(), "ingest.workers")
}
