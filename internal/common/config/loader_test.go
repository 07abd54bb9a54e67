package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
camunda:
  broker_address: localhost:26500
workers:
  extract-shadow-queries:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "shadowquery-workers", cfg.App.Name)
	assert.Equal(t, 10, cfg.Camunda.MaxJobsActive)
	assert.Equal(t, "https://chatgpt.com", cfg.ChatGPT.BaseURL)
	assert.Equal(t, 3, cfg.ChatGPT.MaxRetries)
	assert.Equal(t, time.Hour, cfg.Cache.TTLDuration())
	assert.Equal(t, "shadowq:report", cfg.Cache.KeyPrefix)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Database.Postgres.Enabled())

	w := GetWorkerConfig(cfg, "extract-shadow-queries")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis.internal:6379")
	path := writeConfig(t, `
camunda:
  broker_address: zeebe:26500
cache:
  enabled: true
  ttl: 120
database:
  redis:
    address: ${TEST_REDIS_ADDR}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6379", cfg.Database.Redis.Address)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTLDuration())
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing broker",
			body:    "logging:\n  level: debug\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name:    "cache without redis",
			body:    "camunda:\n  broker_address: x:1\ncache:\n  enabled: true\n",
			wantErr: "database.redis.address is required",
		},
		{
			name:    "postgres without database",
			body:    "camunda:\n  broker_address: x:1\ndatabase:\n  postgres:\n    host: db\n    user: u\n",
			wantErr: "database.postgres.database is required",
		},
		{
			name:    "bad base url",
			body:    "camunda:\n  broker_address: x:1\nchatgpt:\n  base_url: chatgpt.com\n",
			wantErr: "chatgpt.base_url must be an http(s) URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestIsWorkerEnabled(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"export-report": {Enabled: false}}}

	assert.False(t, IsWorkerEnabled(cfg, "export-report"))
	assert.True(t, IsWorkerEnabled(cfg, "extract-shadow-queries"))
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "reports", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=reports sslmode=disable", p.GetDSN())
}
