package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchant-onboarding/internal/common/config"
	apperrors "merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/models"
	"merchant-onboarding/internal/onboarding"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(config.GatewayConfig{
		BaseURL:      server.URL + "/api/v1/",
		Timeout:      2000,
		MaxRetries:   2,
		RetryBackoff: 1,
	}, logger.NewTestLogger(t))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestProcessDocument(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/upload-and-process", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "bank_statement", r.FormValue("document_type"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "statement.pdf", header.Filename)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":        "success",
			"document_type": "ein_letter", // echoed tag is ignored
			"filename":      header.Filename,
			"file_size":     len(content),
			"ai_processing": map[string]interface{}{
				"confidence_score": 0.85,
				"full_text_length": len(content),
				"form_fields":      map[string]interface{}{"account_holder": "Jane Doe", "balance": 1200.5},
			},
		})
	}))

	ext, err := client.ProcessDocument(context.Background(), onboarding.CategoryBankStatement,
		onboarding.FileRef{Name: "statement.pdf", Size: 9}, []byte("statement"))
	require.NoError(t, err)
	assert.Equal(t, 0.85, ext.ConfidenceScore)
	assert.Equal(t, 9, ext.FullTextLength)
	assert.Equal(t, map[string]string{"account_holder": "Jane Doe", "balance": "1200.5"}, ext.FormFields)
}

func TestProcessDocument_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     interface{}
		sentinel error
	}{
		{
			name:     "rejected file",
			status:   http.StatusBadRequest,
			body:     models.ErrorResponse{Detail: "File type .exe not allowed"},
			sentinel: apperrors.ErrUploadFailed,
		},
		{
			name:     "schema violation",
			status:   http.StatusOK,
			body:     map[string]interface{}{"ai_processing": map[string]interface{}{"confidence_score": 7}},
			sentinel: apperrors.ErrInvalidResponse,
		},
		{
			name:     "missing extraction",
			status:   http.StatusOK,
			body:     map[string]interface{}{"status": "success"},
			sentinel: apperrors.ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			_, err := client.ProcessDocument(context.Background(), onboarding.CategoryEINLetter,
				onboarding.FileRef{Name: "ein.pdf"}, []byte("x"))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestSubmitApplication(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/submit-application", r.URL.Path)

		var req models.SubmitApplicationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Jane", req.PersonalData["firstName"])
		assert.Equal(t, 0.9, req.ProcessedDocuments["bank_statement"].AIProcessing.ConfidenceScore)

		writeJSON(w, http.StatusOK, models.SubmitApplicationResponse{
			Status:          "success",
			ApplicationID:   "APP-20240301-ABCDEF12",
			ApprovalStatus:  models.ApprovalApproved,
			RiskScore:       88,
			RiskLevel:       "LOW",
			Terms:           &models.Terms{Rate: "3.2%", DailyLimit: "$40,000"},
			ProcessingTime:  "1.2 minutes",
			SavedToDatabase: true,
			StorageMode:     models.StorageModeDatabase,
		})
	}))

	d, err := client.SubmitApplication(context.Background(), onboarding.SubmissionRequest{
		Personal: onboarding.Fields{"firstName": "Jane"},
		Business: onboarding.Fields{"businessName": "Acme"},
		Documents: map[onboarding.DocumentCategory]onboarding.Extraction{
			onboarding.CategoryBankStatement: {ConfidenceScore: 0.9},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "APP-20240301-ABCDEF12", d.ApplicationID)
	assert.Equal(t, models.ApprovalApproved, d.ApprovalStatus)
	assert.Equal(t, "3.2%", d.Terms.Rate)
	assert.True(t, d.SavedToDatabase)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSubmitApplication_NotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Detail: "risk engine unavailable"})
	}))

	_, err := client.SubmitApplication(context.Background(), onboarding.SubmissionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSubmissionFailed)
	assert.Contains(t, err.Error(), "submission failed")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, "risk engine unavailable", stdErr.Details)
}

func TestSubmitApplication_InvalidApproval(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"application_id": "APP-1", "approval_status": "MAYBE"})
	}))

	_, err := client.SubmitApplication(context.Background(), onboarding.SubmissionRequest{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidResponse)
}

func TestCheckStatus(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// first attempt hits a transient failure
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/api/v1/application/APP-1/status":
			writeJSON(w, http.StatusOK, models.ApplicationStatusResponse{
				ApplicationID:      "APP-1",
				Status:             models.ApprovalApproved,
				RiskScore:          91,
				RiskLevel:          "LOW",
				ProcessingComplete: true,
				Source:             models.SourceMemoryFallback,
			})
		default:
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Detail: "Application not found"})
		}
	}))

	r, err := client.CheckStatus(context.Background(), "APP-1")
	require.NoError(t, err)
	assert.Equal(t, 91, r.RiskScore)
	assert.Equal(t, models.SourceMemoryFallback, r.Source)
	assert.True(t, r.ProcessingComplete)

	_, err = client.CheckStatus(context.Background(), "APP-404")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCheckStatus_InvalidSource(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"application_id": "APP-1",
			"status":         models.ApprovalApproved,
			"source":         "cache",
		})
	}))

	_, err := client.CheckStatus(context.Background(), "APP-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidResponse)
}

func TestGenerateAndDownloadContract(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/generate-contract/APP-1", func(w http.ResponseWriter, r *http.Request) {
		var req models.GenerateContractRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "APP-1", req.ApplicationID)
		assert.Equal(t, "Jane Doe", req.Signature)
		assert.Equal(t, "3.5%", req.MerchantTerms.Rate)
		writeJSON(w, http.StatusOK, models.GenerateContractResponse{
			Success:       true,
			Filename:      "contract_APP-1_20240301120000.txt",
			DownloadURL:   "/api/v1/download-contract/contract_APP-1_20240301120000.txt",
			ApplicationID: "APP-1",
		})
	})
	mux.HandleFunc("/api/v1/download-contract/contract_APP-1_20240301120000.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("MERCHANT PROCESSING AGREEMENT"))
	})
	client := newTestClient(t, mux)

	f, err := client.GenerateContract(context.Background(), "APP-1", onboarding.ContractPayload{
		Terms:     &models.Terms{Rate: "3.5%"},
		Signature: "Jane Doe",
	})
	require.NoError(t, err)
	assert.True(t, f.Success)

	rc, err := client.DownloadContract(context.Background(), f.Filename)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "MERCHANT PROCESSING AGREEMENT", string(body))

	_, err = client.DownloadContract(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTestConnection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.ConnectionTestResponse{Message: "Backend is running!", Status: "ready"})
	}))
	require.NoError(t, client.TestConnection(context.Background()))

	notReady := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.ConnectionTestResponse{Status: "starting"})
	}))
	assert.ErrorIs(t, notReady.TestConnection(context.Background()), apperrors.ErrConnectionUnavailable)
}

func TestConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client := New(config.GatewayConfig{BaseURL: baseURL, Timeout: 500, RetryBackoff: 1}, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := client.TestConnection(ctx)
	assert.ErrorIs(t, err, apperrors.ErrConnectionUnavailable)

	_, err = client.SubmitApplication(ctx, onboarding.SubmissionRequest{})
	assert.ErrorIs(t, err, apperrors.ErrConnectionUnavailable)
}

func TestStoreDrivesGateway(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/test":
			writeJSON(w, http.StatusOK, models.ConnectionTestResponse{Status: "ready"})
		case "/api/v1/upload-and-process":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"ai_processing": map[string]interface{}{"confidence_score": 0.8, "full_text_length": 4},
			})
		default:
			http.NotFound(w, r)
		}
	}))

	store := onboarding.NewStore(client, onboarding.WithLogger(logger.NewTestLogger(t)))
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, store.BeginUpload(ctx, onboarding.CategoryDriversLicense, onboarding.FileRef{Name: "dl.png"}, []byte("scan")))
	require.NoError(t, store.Wait(ctx))

	app, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, app.BackendConnected)
	assert.Equal(t, onboarding.DocumentProcessed, app.Documents[onboarding.CategoryDriversLicense].Status)
}
