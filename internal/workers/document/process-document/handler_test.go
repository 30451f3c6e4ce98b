package processdocument

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchant-onboarding/internal/common/config"
	"merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
)

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "merchant-onboarding",
		ProcessDefinitionVersion: 1,
		ElementId:                "Activity_ProcessDocument",
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Variables:                string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewHandler(DefaultConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)
	return h
}

func TestNewHandler(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "defaults", cfg: nil},
		{name: "negative timeout", cfg: &Config{MaxJobsActive: 1, Timeout: -time.Second, MaxFileBytes: 1, AllowedExtensions: []string{".txt"}}, wantErr: "timeout must be positive"},
		{name: "zero jobs", cfg: &Config{Timeout: time.Second, MaxFileBytes: 1, AllowedExtensions: []string{".txt"}}, wantErr: "max_jobs_active must be positive"},
		{name: "no size limit", cfg: &Config{MaxJobsActive: 1, Timeout: time.Second, AllowedExtensions: []string{".txt"}}, wantErr: "max_file_bytes must be positive"},
		{name: "no extensions", cfg: &Config{MaxJobsActive: 1, Timeout: time.Second, MaxFileBytes: 1}, wantErr: "allowed extension"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.cfg, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, h.logger)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	appCfg := &config.Config{
		Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: false, MaxJobsActive: 12, Timeout: 4000},
		},
		Onboarding: config.OnboardingConfig{MaxUploadBytes: 2048},
	}

	cfg := FromAppConfig(appCfg)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 12, cfg.MaxJobsActive)
	assert.Equal(t, 4*time.Second, cfg.Timeout)
	assert.Equal(t, int64(2048), cfg.MaxFileBytes)

	assert.Equal(t, DefaultConfig(), FromAppConfig(nil))
}

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t)

	job := createMockJob(1, map[string]interface{}{
		"documentType": "bank_statement",
		"filename":     "statement.txt",
		"content":      []byte("Account Holder: Jane Doe\n"),
	})
	input, err := h.parseInput(job)
	require.NoError(t, err)
	assert.Equal(t, "bank_statement", input.DocumentType)
	assert.Equal(t, "Account Holder: Jane Doe\n", string(input.Content))

	bad := createMockJob(2, nil)
	bad.Variables = "{not json"
	_, err = h.parseInput(bad)
	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInvalidDocument, stdErr.Code)
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		fields     map[string]interface{}
		confidence float64
	}{
		{
			name:       "empty file",
			content:    "",
			fields:     map[string]interface{}{},
			confidence: 0,
		},
		{
			name:       "no fields",
			content:    "scanned image bytes",
			fields:     map[string]interface{}{},
			confidence: 0.75,
		},
		{
			name:    "three fields",
			content: "Business Name: Acme Corp\nEIN: 12-3456789\nnot a field\nState: CA\n",
			fields: map[string]interface{}{
				"Business Name": "Acme Corp",
				"EIN":           "12-3456789",
				"State":         "CA",
			},
			confidence: 0.9,
		},
		{
			name:       "blank keys and values skipped",
			content:    ": value\nkey:\n  Owner :  Jane  \n",
			fields:     map[string]interface{}{"Owner": "Jane"},
			confidence: 0.8,
		},
		{
			name:       "confidence capped",
			content:    strings.Repeat("k0: v\n", 1) + "a: 1\nb: 2\nc: 3\nd: 4\ne: 5\nf: 6\n",
			fields:     map[string]interface{}{"k0": "v", "a": "1", "b": "2", "c": "3", "d": "4", "e": "5", "f": "6"},
			confidence: 0.99,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract([]byte(tt.content))
			assert.Equal(t, tt.fields, got.FormFields)
			assert.InDelta(t, tt.confidence, got.ConfidenceScore, 1e-9)
			assert.Equal(t, len(tt.content), got.FullTextLength)
		})
	}
}

func TestHandler_Execute(t *testing.T) {
	h := newTestHandler(t)

	out, err := h.Execute(context.Background(), &Input{
		Filename: "license.TXT",
		Content:  []byte("License Number: BL-42\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultDocumentType, out.DocumentType)
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, int64(22), out.FileSize)
	assert.NotEmpty(t, out.FileID)
	assert.InDelta(t, 0.8, out.AIProcessing.ConfidenceScore, 1e-9)

	resp := out.Response()
	assert.Equal(t, "license.TXT", resp.Filename)
	assert.Equal(t, out.AIProcessing, resp.AIProcessing)
}

func TestHandler_ExecuteRejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFileBytes = 8
	h, err := NewHandler(cfg, logger.NewTestLogger(t))
	require.NoError(t, err)

	tests := []struct {
		name   string
		input  *Input
		detail string
	}{
		{name: "missing filename", input: &Input{Content: []byte("x")}, detail: "filename is required"},
		{name: "bad extension", input: &Input{Filename: "payload.exe", Content: []byte("x")}, detail: "Invalid file"},
		{name: "too large", input: &Input{Filename: "big.pdf", Content: []byte("0123456789")}, detail: "File too large. Size: 10, Max: 8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeInvalidDocument, stdErr.Code)
			assert.Contains(t, stdErr.Details, tt.detail)
		})
	}
}
