package checkapplicationstatus

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchant-onboarding/internal/applications"
	"merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/models"
)

var createdAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func approvedRecord() models.ApplicationRecord {
	return models.ApplicationRecord{
		ApplicationID:  "APP-20240301-11223344",
		ApprovalStatus: models.ApprovalApproved,
		RiskScore:      88,
		RiskLevel:      "LOW",
		Terms:          &models.Terms{Rate: "3.2%", Settlement: "Next business day"},
		ProcessingTime: "1.2 minutes",
		CreatedAt:      createdAt,
	}
}

func TestExecute_FromCache(t *testing.T) {
	cache, cacheMock := redismock.NewClientMock()
	rec := approvedRecord()
	cached, _ := json.Marshal(rec)
	cacheMock.ExpectGet("application:" + rec.ApplicationID).SetVal(string(cached))

	repo := applications.NewRepository(applications.Options{Cache: cache}, logger.NewNoOpLogger())
	h, err := NewHandler(DefaultConfig(), repo, logger.NewTestLogger(t))
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), &Input{ApplicationID: rec.ApplicationID})
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalApproved, out.Status)
	assert.Equal(t, 88, out.RiskScore)
	assert.Equal(t, "3.2%", out.Terms.Rate)
	assert.Equal(t, "2024-03-01T12:00:00Z", out.CreatedAt)
	assert.True(t, out.ProcessingComplete)
	assert.Equal(t, models.SourceDatabase, out.Source)
	require.NoError(t, cacheMock.ExpectationsWereMet())

	resp := out.Response()
	assert.Equal(t, rec.ApplicationID, resp.ApplicationID)
	assert.Equal(t, out.Source, resp.Source)
}

func TestExecute_FromDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := approvedRecord()
	terms, _ := json.Marshal(rec.Terms)
	rows := sqlmock.NewRows([]string{
		"application_id", "personal_data", "business_data", "processed_documents",
		"risk_score", "risk_level", "status", "terms", "processing_time", "created_at",
	}).AddRow(rec.ApplicationID, nil, nil, nil, 88, "LOW", models.ApprovalApproved, terms, "1.2 minutes", createdAt)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT application_id")).WithArgs(rec.ApplicationID).WillReturnRows(rows)

	repo := applications.NewRepository(applications.Options{DB: db}, logger.NewNoOpLogger())
	h, err := NewHandler(DefaultConfig(), repo, logger.NewTestLogger(t))
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), &Input{ApplicationID: " " + rec.ApplicationID + " "})
	require.NoError(t, err)
	assert.Equal(t, models.SourceDatabase, out.Source)
	assert.Equal(t, "LOW", out.RiskLevel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_NotFound(t *testing.T) {
	repo := applications.NewRepository(applications.Options{}, logger.NewNoOpLogger())
	h, err := NewHandler(DefaultConfig(), repo, logger.NewTestLogger(t))
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), &Input{ApplicationID: "APP-MISSING"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = h.Execute(context.Background(), &Input{})
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeApplicationValidation, stdErr.Code)
}

func TestNewHandler_InvalidConfig(t *testing.T) {
	_, err := NewHandler(&Config{MaxJobsActive: 1}, nil, logger.NewNoOpLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout must be positive")
}
