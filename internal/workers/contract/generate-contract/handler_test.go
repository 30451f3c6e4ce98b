package generatecontract

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchant-onboarding/internal/applications"
	"merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/common/storage"
	"merchant-onboarding/internal/models"
)

var signedAt = time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)

func setup(t *testing.T, status string) (*Handler, *storage.MemoryStore) {
	t.Helper()

	repo := applications.NewRepository(applications.Options{}, logger.NewNoOpLogger())
	repo.Save(context.Background(), models.ApplicationRecord{
		ApplicationID:  "APP-1",
		PersonalData:   map[string]interface{}{"firstName": "Jane", "lastName": "Doe", "email": "jane@example.com", "city": "Austin", "state": "TX"},
		BusinessData:   map[string]interface{}{"businessName": "Acme Corp", "annualRevenue": float64(750000)},
		ApprovalStatus: status,
		Terms:          &models.Terms{Rate: "3.2%", Settlement: "Next business day"},
	})

	store := storage.NewMemoryStore()
	h, err := NewHandler(HandlerOptions{
		Lookup: repo,
		Store:  store,
		Logger: logger.NewTestLogger(t),
		Clock:  func() time.Time { return signedAt },
	})
	require.NoError(t, err)
	return h, store
}

func TestExecute_GeneratesAndStoresContract(t *testing.T) {
	h, store := setup(t, models.ApprovalApproved)

	out, err := h.Execute(context.Background(), &Input{
		ApplicationID: "APP-1",
		Signature:     "Jane Doe",
		Agreements:    map[string]bool{"terms": true, "privacy": true, "compliance": true, "pricing": true},
	})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, "contract_APP-1_20240301_140509.txt", out.Filename)
	assert.Equal(t, "/api/v1/download-contract/contract_APP-1_20240301_140509.txt", out.DownloadURL)
	assert.Regexp(t, `^CONTRACT-20240301-[0-9A-F]{8}$`, out.ContractID)
	assert.Equal(t, "memory", out.StorageMode)

	rc, size, err := h.Open(context.Background(), out.Filename)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), size)

	text := string(body)
	for _, want := range []string{
		"MERCHANT PROCESSING AGREEMENT",
		"Application ID:  APP-1",
		"Agreement Date:  March 01, 2024",
		"Business Name:   Acme Corp",
		"Annual Revenue:  $750000",
		"EIN:             N/A",
		"Name:            Jane Doe",
		"Processing Rate:         3.2%",
		"Transaction Fee:         N/A",
		"4. TERMINATION: Either party may terminate this agreement with 30 days written notice.",
		"/s/ Jane Doe    Date: 03/01/2024",
		"Accepted:            terms, privacy, compliance, pricing",
	} {
		assert.Contains(t, text, want)
	}

	ok, err := store.Exists(context.Background(), out.Filename)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExecute_RequestTermsWin(t *testing.T) {
	h, _ := setup(t, models.ApprovalApproved)

	out, err := h.Execute(context.Background(), &Input{
		ApplicationID: "APP-1",
		Signature:     "JD!",
		MerchantTerms: &models.Terms{Rate: "2.9%"},
		BusinessData:  map[string]interface{}{"businessName": "Override LLC"},
	})
	require.NoError(t, err)

	rc, _, err := h.Open(context.Background(), out.Filename)
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Contains(t, string(body), "Processing Rate:         2.9%")
	assert.Contains(t, string(body), "Business Name:   Override LLC")
}

func TestExecute_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		status string
		input  *Input
		code   errors.ErrorCode
	}{
		{name: "missing id", status: models.ApprovalApproved, input: &Input{Signature: "Jane"}, code: errors.ErrCodeApplicationValidation},
		{name: "short signature", status: models.ApprovalApproved, input: &Input{ApplicationID: "APP-1", Signature: " JD "}, code: errors.ErrCodeApplicationValidation},
		{name: "unknown application", status: models.ApprovalApproved, input: &Input{ApplicationID: "APP-404", Signature: "Jane"}, code: errors.ErrCodeApplicationNotFound},
		{name: "denied application", status: models.ApprovalDenied, input: &Input{ApplicationID: "APP-1", Signature: "Jane"}, code: errors.ErrCodeApplicationNotApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setup(t, tt.status)
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, stdErr.Code)
		})
	}
}

func TestOpen_Missing(t *testing.T) {
	h, _ := setup(t, models.ApprovalApproved)

	for _, name := range []string{"", "contract_nope.txt", "../etc/passwd", "a/b.txt", ".."} {
		_, _, err := h.Open(context.Background(), name)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, errors.ErrNotFound, name)
	}
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	_, err := NewHandler(HandlerOptions{Store: storage.NewMemoryStore()})
	require.Error(t, err)
}
