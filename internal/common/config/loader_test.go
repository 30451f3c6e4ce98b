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

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: onboarding-test
workers:
  process-document:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "onboarding-test", cfg.App.Name)
	assert.Equal(t, ":8000", cfg.Server.Address)
	assert.Equal(t, FencingLastCompletionWins, cfg.Onboarding.UploadFencing)
	assert.Equal(t, SubmissionModeInline, cfg.Onboarding.SubmissionMode)
	assert.Equal(t, int64(10<<20), cfg.Onboarding.MaxUploadBytes)
	assert.Equal(t, "merchant-contracts", cfg.Storage.MinIO.Bucket)
	assert.Equal(t, 3, cfg.Gateway.MaxRetries)

	worker := cfg.Workers["process-document"]
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 30000, worker.Timeout)
	assert.Equal(t, 3, worker.MaxRetries)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("ONB_TEST_PG_HOST", "db.internal")
	path := writeConfig(t, `
database:
  postgres:
    enabled: true
    host: "${ONB_TEST_PG_HOST}"
    database: onboarding
    user: svc
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "host=db.internal port=5432")
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "enabled postgres without host",
			body: `
database:
  postgres:
    enabled: true
    database: onboarding
    user: svc
`,
			wantErr: "database.postgres.host is required",
		},
		{
			name: "unknown fencing policy",
			body: `
onboarding:
  upload_fencing: first_wins
`,
			wantErr: "onboarding.upload_fencing",
		},
		{
			name: "process mode needs camunda",
			body: `
onboarding:
  submission_mode: process
`,
			wantErr: "requires camunda.enabled",
		},
		{
			name: "camunda without broker",
			body: `
camunda:
  enabled: true
`,
			wantErr: "camunda.broker_address is required",
		},
		{
			name: "disabled services need nothing",
			body: `
database:
  redis:
    enabled: false
storage:
  minio:
    enabled: false
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWorkerHelpers(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"generate-contract": {Enabled: false, Timeout: 1000},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "generate-contract"))
	assert.True(t, IsWorkerEnabled(cfg, "process-document"))
	assert.Equal(t, 1000, GetWorkerConfig(cfg, "generate-contract").Timeout)
	assert.Equal(t, 30000, GetWorkerConfig(cfg, "process-document").Timeout)
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
