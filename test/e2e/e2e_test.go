// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchant-onboarding/internal/api"
	"merchant-onboarding/internal/applications"
	"merchant-onboarding/internal/common/config"
	apperrors "merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/common/storage"
	"merchant-onboarding/internal/gateway"
	"merchant-onboarding/internal/models"
	"merchant-onboarding/internal/onboarding"
	assessmerchantrisk "merchant-onboarding/internal/workers/application/assess-merchant-risk"
	checkapplicationstatus "merchant-onboarding/internal/workers/application/check-application-status"
	storeapplicationrecord "merchant-onboarding/internal/workers/application/store-application-record"
	senddecisionnotification "merchant-onboarding/internal/workers/communication/send-decision-notification"
	generatecontract "merchant-onboarding/internal/workers/contract/generate-contract"
	processdocument "merchant-onboarding/internal/workers/document/process-document"
)

var allConsents = map[string]bool{
	onboarding.ConsentTerms:           true,
	onboarding.ConsentAccuracy:        true,
	onboarding.ConsentBackgroundCheck: true,
}

var allAgreements = map[string]bool{"terms": true, "privacy": true, "compliance": true, "pricing": true}

// startBackend serves the real API handlers, backed by the in-memory
// repository and contract store, on a loopback listener.
func startBackend(t *testing.T) string {
	t.Helper()
	log := logger.NewTestLogger(t)

	repo := applications.NewRepository(applications.Options{}, log)

	documents, err := processdocument.NewHandler(processdocument.DefaultConfig(), log)
	require.NoError(t, err)
	assess, err := assessmerchantrisk.NewHandler(assessmerchantrisk.HandlerOptions{Logger: log})
	require.NoError(t, err)
	status, err := checkapplicationstatus.NewHandler(checkapplicationstatus.DefaultConfig(), repo, log)
	require.NoError(t, err)
	contracts, err := generatecontract.NewHandler(generatecontract.HandlerOptions{
		Lookup: repo,
		Store:  storage.NewMemoryStore(),
		Logger: log,
	})
	require.NoError(t, err)

	srv, err := api.NewServer(api.Options{
		Documents: documents,
		Submissions: api.NewInlineSubmitter(
			assess,
			storeapplicationrecord.NewHandler(storeapplicationrecord.LoadConfig(), repo, log),
			senddecisionnotification.NewHandler(senddecisionnotification.LoadConfig(), nil, nil, log),
			log,
		),
		Status:    status,
		Contracts: contracts,
		Logger:    log,
	})
	require.NoError(t, err)

	backend := httptest.NewServer(srv.Handler())
	t.Cleanup(backend.Close)
	return backend.URL + api.BasePath
}

func newStore(t *testing.T, baseURL string) *onboarding.Store {
	t.Helper()
	log := logger.NewTestLogger(t)
	client := gateway.New(config.GatewayConfig{
		BaseURL:      baseURL,
		Timeout:      5000,
		MaxRetries:   1,
		RetryBackoff: 10,
	}, log)

	store := onboarding.NewStore(client,
		onboarding.WithLogger(log),
		onboarding.WithFencingPolicy(onboarding.LatestAttemptOnly),
		onboarding.WithOperationTimeout(10*time.Second),
	)
	t.Cleanup(store.Close)
	return store
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func fillDetails(t *testing.T, ctx context.Context, store *onboarding.Store) {
	t.Helper()
	personal := map[string]interface{}{
		"firstName": "Jane",
		"lastName":  "Doe",
		"email":     "jane@example.com",
	}
	business := map[string]interface{}{
		"businessName":            "Acme Corp",
		"annualRevenue":           "750000",
		"monthlyProcessingVolume": "60000",
	}
	for k, v := range personal {
		require.NoError(t, store.SetField(ctx, onboarding.SectionPersonal, k, v))
	}
	for k, v := range business {
		require.NoError(t, store.SetField(ctx, onboarding.SectionBusiness, k, v))
	}
}

func snapshot(t *testing.T, ctx context.Context, store *onboarding.Store) onboarding.Application {
	t.Helper()
	app, err := store.Snapshot(ctx)
	require.NoError(t, err)
	return app
}

func TestFullOnboardingFlow(t *testing.T) {
	store := newStore(t, startBackend(t))
	ctx := testContext(t)

	require.NoError(t, store.Wait(ctx))
	require.True(t, snapshot(t, ctx, store).BackendConnected)

	fillDetails(t, ctx, store)
	require.NoError(t, store.AdvanceStep(ctx, nil))
	require.NoError(t, store.AdvanceStep(ctx, nil))

	statement := []byte("Bank Name: First National\nAccount Holder: Acme Corp\nAverage Balance: 42000\n")
	require.NoError(t, store.BeginUpload(ctx, onboarding.CategoryBankStatement,
		onboarding.FileRef{Name: "statement.txt", Size: int64(len(statement))}, statement))
	require.NoError(t, store.Wait(ctx))

	app := snapshot(t, ctx, store)
	rec := app.Documents[onboarding.CategoryBankStatement]
	require.Equal(t, onboarding.DocumentProcessed, rec.Status, rec.Err)
	require.NotNil(t, rec.Extraction)
	assert.Equal(t, "First National", rec.Extraction.FormFields["Bank Name"])

	require.NoError(t, store.AdvanceStep(ctx, nil))
	require.NoError(t, store.AdvanceStep(ctx, allConsents))
	require.NoError(t, store.Wait(ctx))

	app = snapshot(t, ctx, store)
	require.Equal(t, onboarding.Submitted, app.Submission.State, app.Submission.Err)
	assert.Regexp(t, `^APP-\d{8}-[0-9A-F]{8}$`, app.ApplicationID)
	assert.Equal(t, models.StorageModeMemory, app.StorageMode)
	assert.False(t, app.SavedToDatabase)
	assert.Equal(t, "results", onboarding.CurrentScreen(app))

	results := onboarding.ProjectResults(app)
	assert.Equal(t, models.ApprovalApproved, results.Status)
	assert.False(t, results.DefaultTermsUsed)

	require.NoError(t, store.CheckStatus(ctx))
	require.NoError(t, store.Wait(ctx))
	app = snapshot(t, ctx, store)
	assert.Equal(t, models.SourceMemoryFallback, app.StatusCheck.Source)
	assert.Empty(t, app.StatusCheck.Err)

	require.NoError(t, store.SignContract(ctx, "Jane Doe", allAgreements))
	require.NoError(t, store.Wait(ctx))

	app = snapshot(t, ctx, store)
	require.Equal(t, onboarding.ContractStatusGenerated, app.Contract.Status, app.Contract.Err)
	assert.Equal(t, "contract/"+app.ApplicationID, onboarding.CurrentScreen(app))
	assert.Equal(t, "Acme Corp", onboarding.ProjectContract(app).MerchantName)

	rc, filename, err := store.DownloadContract(ctx)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filename, "contract_"+app.ApplicationID+"_"))
	assert.Contains(t, string(body), "MERCHANT PROCESSING AGREEMENT")
	assert.Contains(t, string(body), "/s/ Jane Doe")
}

func TestDocumentsRequiredBeforeReview(t *testing.T) {
	store := newStore(t, startBackend(t))
	ctx := testContext(t)

	fillDetails(t, ctx, store)
	require.NoError(t, store.AdvanceStep(ctx, nil))
	require.NoError(t, store.AdvanceStep(ctx, nil))

	err := store.AdvanceStep(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGuardRejected)

	app := snapshot(t, ctx, store)
	assert.Equal(t, onboarding.StageDocuments, app.CurrentStep)
	assert.Equal(t, onboarding.NotSubmitted, app.Submission.State)
}

func TestRejectedUploadIsIsolated(t *testing.T) {
	store := newStore(t, startBackend(t))
	ctx := testContext(t)

	license := []byte("Business Name: Acme Corp\nLicense Number: BL-1\n")
	require.NoError(t, store.BeginUpload(ctx, onboarding.CategoryBusinessLicense,
		onboarding.FileRef{Name: "license.txt", Size: int64(len(license))}, license))
	require.NoError(t, store.BeginUpload(ctx, onboarding.CategoryEINLetter,
		onboarding.FileRef{Name: "ein.exe", Size: 1}, []byte("x")))
	require.NoError(t, store.Wait(ctx))

	app := snapshot(t, ctx, store)
	assert.Equal(t, onboarding.DocumentProcessed, app.Documents[onboarding.CategoryBusinessLicense].Status)
	assert.Equal(t, onboarding.DocumentFailed, app.Documents[onboarding.CategoryEINLetter].Status)
	assert.NotEmpty(t, app.Documents[onboarding.CategoryEINLetter].Err)
}

func TestResetStartsNewSession(t *testing.T) {
	store := newStore(t, startBackend(t))
	ctx := testContext(t)

	fillDetails(t, ctx, store)
	require.NoError(t, store.AdvanceStep(ctx, nil))
	before := snapshot(t, ctx, store)

	require.NoError(t, store.Reset(ctx))
	require.NoError(t, store.Wait(ctx))

	after := snapshot(t, ctx, store)
	assert.Equal(t, before.Session+1, after.Session)
	assert.Equal(t, onboarding.StagePersonal, after.CurrentStep)
	assert.Empty(t, after.Personal)
	assert.Empty(t, after.Business)
	assert.True(t, after.BackendConnected)
}

func TestBackendUnavailable(t *testing.T) {
	backend := httptest.NewServer(nil)
	url := backend.URL + api.BasePath
	backend.Close()

	store := newStore(t, url)
	ctx := testContext(t)
	require.NoError(t, store.Wait(ctx))

	app := snapshot(t, ctx, store)
	assert.False(t, app.BackendConnected)
	assert.NotEmpty(t, app.ConnectionError)
}

// TestLiveBackend runs the flow against a deployed API when
// ONBOARDING_E2E_BASE_URL is set, e.g. http://localhost:8000/api/v1.
func TestLiveBackend(t *testing.T) {
	baseURL := os.Getenv("ONBOARDING_E2E_BASE_URL")
	if baseURL == "" {
		t.Skip("ONBOARDING_E2E_BASE_URL not set")
	}

	store := newStore(t, baseURL)
	ctx := testContext(t)
	require.NoError(t, store.Wait(ctx))
	require.True(t, snapshot(t, ctx, store).BackendConnected)

	fillDetails(t, ctx, store)
	require.NoError(t, store.AdvanceStep(ctx, nil))
	require.NoError(t, store.AdvanceStep(ctx, nil))

	statement := []byte("Bank Name: First National\nAverage Balance: 42000\n")
	require.NoError(t, store.BeginUpload(ctx, onboarding.CategoryBankStatement,
		onboarding.FileRef{Name: "statement.txt", Size: int64(len(statement))}, statement))
	require.NoError(t, store.Wait(ctx))
	require.NoError(t, store.AdvanceStep(ctx, nil))
	require.NoError(t, store.AdvanceStep(ctx, allConsents))
	require.NoError(t, store.Wait(ctx))

	app := snapshot(t, ctx, store)
	require.Equal(t, onboarding.Submitted, app.Submission.State, app.Submission.Err)
	t.Logf("application %s decided %s (storage: %s)", app.ApplicationID, app.Decision().ApprovalStatus, app.StorageMode)
}
