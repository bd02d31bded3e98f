package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
clickhouse:
  host: localhost
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "marketdata-exporter", cfg.Service.Name)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "stderr", cfg.Log.Output)

	assert.Equal(t, "localhost", cfg.ClickHouse.Host)
	assert.Equal(t, 9000, cfg.ClickHouse.Port)
	assert.Equal(t, "marketdata", cfg.ClickHouse.Database)
	assert.Equal(t, "candles", cfg.ClickHouse.Table)
	assert.Equal(t, 5*time.Second, cfg.ClickHouse.DialTimeout)
	assert.Equal(t, 30*time.Second, cfg.ClickHouse.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.ClickHouse.MaxExecutionTime)

	assert.Equal(t, 1*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 2.0, cfg.Retry.Factor)
	assert.Equal(t, 32*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)

	assert.Equal(t, ".", cfg.Output.Dir)
	assert.False(t, cfg.Output.Storage.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Output.Storage.URLExpiry)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
environment: production
clickhouse:
  host: ch.internal
  port: 9440
  database: quotes
retry:
  max_attempts: 3
`))
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9440, cfg.ClickHouse.Port)
	assert.Equal(t, "quotes", cfg.ClickHouse.Database)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestTableFQN(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "marketdata.candles", cfg.TableFQN())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing clickhouse host", `environment: production`},
		{"bad log level", minimalConfig + "\nlog:\n  level: verbose\n"},
		{"bad log format", minimalConfig + "\nlog:\n  format: xml\n"},
		{"storage enabled without endpoint", minimalConfig + `
output:
  storage:
    enabled: true
    bucket: exports
    access_key: ak
    secret_key: sk
`},
		{"storage enabled without credentials", minimalConfig + `
output:
  storage:
    enabled: true
    endpoint: minio.local:9000
    bucket: exports
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOST", "ch.override")
	t.Setenv("CLICKHOUSE_PORT", "9440")
	t.Setenv("CLICKHOUSE_PASSWORD", "s3cret")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OUTPUT_DIR", "/tmp/exports")

	cfg, err := LoadWithEnv(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "ch.override", cfg.ClickHouse.Host)
	assert.Equal(t, 9440, cfg.ClickHouse.Port)
	assert.Equal(t, "s3cret", cfg.ClickHouse.Password)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/exports", cfg.Output.Dir)
}

func TestLoadWithEnvBadPortKeepsYAMLValue(t *testing.T) {
	t.Setenv("CLICKHOUSE_PORT", "not-a-number")

	cfg, err := LoadWithEnv(writeConfig(t, minimalConfig+"  port: 9001\n"))
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.ClickHouse.Port)
}
