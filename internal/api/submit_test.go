package api

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/models"
	assessmerchantrisk "merchant-onboarding/internal/workers/application/assess-merchant-risk"
	storeapplicationrecord "merchant-onboarding/internal/workers/application/store-application-record"
	senddecisionnotification "merchant-onboarding/internal/workers/communication/send-decision-notification"
)

type fakeRunner struct {
	processID string
	variables interface{}
	result    map[string]interface{}
	err       error
}

func (f *fakeRunner) RunProcess(_ context.Context, processID string, variables interface{}) (map[string]interface{}, error) {
	f.processID = processID
	f.variables = variables
	return f.result, f.err
}

func TestProcessSubmitter_Submit(t *testing.T) {
	runner := &fakeRunner{result: map[string]interface{}{
		"applicationId":   "APP-20240301-AB12CD34",
		"approvalStatus":  "APPROVED",
		"riskScore":       float64(82),
		"riskLevel":       "LOW",
		"terms":           map[string]interface{}{"rate": "3.2%", "daily_limit": "$40,000"},
		"processingTime":  "1.2 minutes",
		"message":         "Application approved",
		"savedToDatabase": true,
		"storageMode":     "database",
	}}

	s := NewProcessSubmitter(runner, "merchant-onboarding", logger.NewTestLogger(t))
	resp, err := s.Submit(context.Background(), submission())
	require.NoError(t, err)

	assert.Equal(t, "merchant-onboarding", runner.processID)
	vars, ok := runner.variables.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, vars, "processedDocuments")

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "APP-20240301-AB12CD34", resp.ApplicationID)
	assert.Equal(t, 82, resp.RiskScore)
	require.NotNil(t, resp.Terms)
	assert.Equal(t, "3.2%", resp.Terms.Rate)
	assert.Equal(t, "$40,000", resp.Terms.DailyLimit)
	assert.True(t, resp.SavedToDatabase)
	assert.Equal(t, "database", resp.StorageMode)
}

func TestProcessSubmitter_Failures(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
		code   apperrors.ErrorCode
	}{
		{
			name:   "broker unavailable",
			runner: &fakeRunner{err: apperrors.NewConnectionUnavailableError("zeebe", errors.New("connection refused"))},
			code:   apperrors.ErrCodeConnectionUnavailable,
		},
		{
			name:   "process ended with an error",
			runner: &fakeRunner{result: map[string]interface{}{"errorCode": "RISK_ASSESSMENT_FAILED", "errorMessage": "boom"}},
			code:   apperrors.ErrCodeRiskAssessmentFailed,
		},
		{
			name:   "no decision",
			runner: &fakeRunner{result: map[string]interface{}{}},
			code:   apperrors.ErrCodeRiskAssessmentFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProcessSubmitter(tt.runner, "merchant-onboarding", logger.NewTestLogger(t))
			_, err := s.Submit(context.Background(), submission())
			require.Error(t, err)
			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, stdErr.Code)
		})
	}
}

type failingStore struct{}

func (failingStore) Execute(context.Context, *storeapplicationrecord.Input) (*storeapplicationrecord.Output, error) {
	return nil, apperrors.NewApplicationValidationError("applicationId and approvalStatus are required")
}

type recordingNotifier struct {
	calls int
}

func (n *recordingNotifier) Execute(_ context.Context, _ *senddecisionnotification.Input) (*senddecisionnotification.Output, error) {
	n.calls++
	return nil, errors.New("smtp down")
}

func TestInlineSubmitter_StoreFailureStopsSubmission(t *testing.T) {
	log := logger.NewTestLogger(t)
	assess, err := assessmerchantrisk.NewHandler(assessmerchantrisk.HandlerOptions{Logger: log})
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	s := NewInlineSubmitter(assess, failingStore{}, notifier, log)

	_, err = s.Submit(context.Background(), submission())
	require.Error(t, err)
	assert.Zero(t, notifier.calls)
}

type memoryStore struct{}

func (memoryStore) Execute(context.Context, *storeapplicationrecord.Input) (*storeapplicationrecord.Output, error) {
	return &storeapplicationrecord.Output{StorageMode: models.StorageModeMemory}, nil
}

func TestInlineSubmitter_NotificationErrorIsIgnored(t *testing.T) {
	log := logger.NewTestLogger(t)
	assess, err := assessmerchantrisk.NewHandler(assessmerchantrisk.HandlerOptions{Logger: log})
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	s := NewInlineSubmitter(assess, memoryStore{}, notifier, log)

	resp, err := s.Submit(context.Background(), submission())
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, models.StorageModeMemory, resp.StorageMode)
}
