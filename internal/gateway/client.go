// Package gateway is the typed HTTP client for the onboarding API. It holds no
// state: every call except submit and generate-contract is retried, and every
// response is checked against a JSON schema before it is decoded.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"merchant-onboarding/internal/common/config"
	apperrors "merchant-onboarding/internal/common/errors"
	commonhttp "merchant-onboarding/internal/common/http"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/common/metrics"
	"merchant-onboarding/internal/common/validation"
	"merchant-onboarding/internal/models"
	"merchant-onboarding/internal/onboarding"
)

const serviceName = "onboarding-api"

const (
	opProcessDocument  = "process_document"
	opSubmit           = "submit_application"
	opCheckStatus      = "check_status"
	opGenerateContract = "generate_contract"
	opDownloadContract = "download_contract"
	opTestConnection   = "test_connection"
)

// Client implements onboarding.Gateway over HTTP.
type Client struct {
	baseURL string
	http    *commonhttp.Client
	tracer  trace.Tracer
	logger  logger.Logger
}

var _ onboarding.Gateway = (*Client)(nil)

// New builds a client for the API rooted at cfg.BaseURL (including /api/v1).
func New(cfg config.GatewayConfig, log logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: commonhttp.NewClientWithRetry(config.GetDuration(cfg.Timeout), commonhttp.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			Backoff:    config.GetDuration(cfg.RetryBackoff),
		}),
		tracer: otel.Tracer("merchant-onboarding/gateway"),
		logger: log.WithFields(map[string]interface{}{"component": "gateway"}),
	}
}

// ProcessDocument uploads one document for extraction. The result is always
// attributed to category, whatever the response echoes.
func (c *Client) ProcessDocument(ctx context.Context, category onboarding.DocumentCategory, file onboarding.FileRef, content []byte) (ext onboarding.Extraction, err error) {
	ctx, finish := c.start(ctx, opProcessDocument, attribute.String("document.category", string(category)))
	defer func() { finish(err) }()

	body, contentType, err := multipartBody(file.Name, string(category), content)
	if err != nil {
		return onboarding.Extraction{}, apperrors.NewDocumentProcessingFailedError(string(category), err)
	}

	resp, err := c.http.DoWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.url("upload-and-process"), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return onboarding.Extraction{}, c.transportError(err)
	}

	var out models.ProcessDocumentResponse
	if err := c.decode(resp, opProcessDocument, processDocumentSchema, &out); err != nil {
		if isAPIError(err) {
			return onboarding.Extraction{}, apperrors.NewUploadFailedError(string(category), err)
		}
		return onboarding.Extraction{}, err
	}

	return onboarding.Extraction{
		ConfidenceScore: out.AIProcessing.ConfidenceScore,
		FullTextLength:  out.AIProcessing.FullTextLength,
		FormFields:      stringFields(out.AIProcessing.FormFields),
	}, nil
}

// SubmitApplication requests a decision. It is sent once; the caller owns
// retrying.
func (c *Client) SubmitApplication(ctx context.Context, sub onboarding.SubmissionRequest) (d onboarding.Decision, err error) {
	ctx, finish := c.start(ctx, opSubmit)
	defer func() { finish(err) }()

	payload := models.SubmitApplicationRequest{
		PersonalData:       sub.Personal,
		BusinessData:       sub.Business,
		ProcessedDocuments: processedDocuments(sub.Documents),
	}
	resp, err := c.postJSON(ctx, c.url("submit-application"), payload)
	if err != nil {
		return onboarding.Decision{}, c.transportError(err)
	}

	var out models.SubmitApplicationResponse
	if err := c.decode(resp, opSubmit, submitApplicationSchema, &out); err != nil {
		if isAPIError(err) {
			return onboarding.Decision{}, apperrors.NewSubmissionFailedError(err)
		}
		return onboarding.Decision{}, err
	}

	c.logger.Info("Application decided", map[string]interface{}{
		"applicationId":  out.ApplicationID,
		"approvalStatus": out.ApprovalStatus,
		"riskScore":      out.RiskScore,
	})

	return onboarding.Decision{
		ApplicationID:   out.ApplicationID,
		ApprovalStatus:  out.ApprovalStatus,
		RiskScore:       out.RiskScore,
		RiskLevel:       out.RiskLevel,
		Terms:           out.Terms,
		ProcessingTime:  out.ProcessingTime,
		Message:         out.Message,
		StorageMode:     out.StorageMode,
		SavedToDatabase: out.SavedToDatabase,
	}, nil
}

// CheckStatus fetches the stored decision for applicationID.
func (c *Client) CheckStatus(ctx context.Context, applicationID string) (r onboarding.StatusReport, err error) {
	ctx, finish := c.start(ctx, opCheckStatus, attribute.String("application.id", applicationID))
	defer func() { finish(err) }()

	resp, err := c.get(ctx, c.url("application", applicationID, "status"))
	if err != nil {
		return onboarding.StatusReport{}, c.transportError(err)
	}

	var out models.ApplicationStatusResponse
	if err := c.decode(resp, opCheckStatus, applicationStatusSchema, &out); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound {
			return onboarding.StatusReport{}, apperrors.NewApplicationNotFoundError(applicationID)
		}
		return onboarding.StatusReport{}, err
	}

	return onboarding.StatusReport{
		ApplicationID:      out.ApplicationID,
		Status:             out.Status,
		RiskScore:          out.RiskScore,
		RiskLevel:          out.RiskLevel,
		Terms:              out.Terms,
		ProcessingComplete: out.ProcessingComplete,
		Source:             out.Source,
	}, nil
}

// GenerateContract renders the signed contract for an approved application.
func (c *Client) GenerateContract(ctx context.Context, applicationID string, p onboarding.ContractPayload) (f onboarding.ContractFile, err error) {
	ctx, finish := c.start(ctx, opGenerateContract, attribute.String("application.id", applicationID))
	defer func() { finish(err) }()

	payload := models.GenerateContractRequest{
		ApplicationID:      applicationID,
		PersonalData:       p.Personal,
		BusinessData:       p.Business,
		MerchantTerms:      p.Terms,
		ProcessedDocuments: processedDocuments(p.Documents),
		Signature:          p.Signature,
		Agreements:         p.Agreements,
	}
	resp, err := c.postJSON(ctx, c.url("generate-contract", applicationID), payload)
	if err != nil {
		return onboarding.ContractFile{}, c.transportError(err)
	}

	var out models.GenerateContractResponse
	if err := c.decode(resp, opGenerateContract, generateContractSchema, &out); err != nil {
		if isAPIError(err) {
			return onboarding.ContractFile{}, apperrors.NewContractGenerationFailedError(err)
		}
		return onboarding.ContractFile{}, err
	}

	return onboarding.ContractFile{
		Success:     out.Success,
		Filename:    out.Filename,
		DownloadURL: out.DownloadURL,
		Message:     out.Message,
	}, nil
}

// DownloadContract streams a generated contract. The caller closes the body.
func (c *Client) DownloadContract(ctx context.Context, filename string) (rc io.ReadCloser, err error) {
	ctx, finish := c.start(ctx, opDownloadContract, attribute.String("contract.filename", filename))
	defer func() { finish(err) }()

	resp, err := c.get(ctx, c.url("download-contract", filename))
	if err != nil {
		return nil, c.transportError(err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, apperrors.NewContractNotFoundError(filename)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp.Body, nil
}

// TestConnection probes the API's readiness endpoint.
func (c *Client) TestConnection(ctx context.Context) (err error) {
	ctx, finish := c.start(ctx, opTestConnection)
	defer func() { finish(err) }()

	resp, err := c.get(ctx, c.url("test"))
	if err != nil {
		return c.transportError(err)
	}

	var out models.ConnectionTestResponse
	if err := c.decode(resp, opTestConnection, connectionTestSchema, &out); err != nil {
		return apperrors.NewConnectionUnavailableError(serviceName, err)
	}
	if out.Status != "ready" {
		return apperrors.NewConnectionUnavailableError(serviceName, fmt.Errorf("service status %q", out.Status))
	}
	return nil
}

// start opens a span and returns a closer that records the outcome.
func (c *Client) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := c.tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
	started := time.Now()

	return ctx, func(err error) {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Warn("Gateway call failed", map[string]interface{}{
				"operation": op,
				"error":     err.Error(),
			})
		}
		metrics.GatewayRequestDuration.WithLabelValues(op, outcome).Observe(time.Since(started).Seconds())
		span.End()
	}
}

func (c *Client) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	return c.http.DoWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, target, nil)
	})
}

func (c *Client) postJSON(ctx context.Context, target string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.DoWithContext(ctx, req)
}

// decode checks the status, validates the body against schema and unmarshals
// it into out. It always closes the body.
func (c *Client) decode(resp *http.Response, op string, schema *validation.Schema, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewConnectionUnavailableError(serviceName, err)
	}

	result, err := schema.ValidateBytes(raw)
	if err != nil {
		return apperrors.NewInvalidResponseError(op, err.Error())
	}
	if !result.Valid {
		return apperrors.NewInvalidResponseError(op, result.Summary())
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewInvalidResponseError(op, err.Error())
	}
	return nil
}

func (c *Client) transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperrors.NewConnectionUnavailableError(serviceName, err)
}

// apiError is a non-2xx response with the API's detail message.
type apiError struct {
	status int
	detail string
	code   string
}

func (e *apiError) Error() string {
	if e.detail == "" {
		return fmt.Sprintf("server returned %d", e.status)
	}
	return e.detail
}

func isAPIError(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr)
}

func readAPIError(resp *http.Response) error {
	var body models.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	return &apiError{status: resp.StatusCode, detail: body.Detail, code: body.Code}
}

func multipartBody(filename, documentType string, content []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("document_type", documentType); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func processedDocuments(docs map[onboarding.DocumentCategory]onboarding.Extraction) map[string]models.ProcessedDocument {
	out := make(map[string]models.ProcessedDocument, len(docs))
	for cat, ext := range docs {
		fields := make(map[string]interface{}, len(ext.FormFields))
		for k, v := range ext.FormFields {
			fields[k] = v
		}
		out[string(cat)] = models.ProcessedDocument{AIProcessing: models.AIProcessing{
			ConfidenceScore: ext.ConfidenceScore,
			FullTextLength:  ext.FullTextLength,
			FormFields:      fields,
		}}
	}
	return out
}

// stringFields coerces extracted form values to display strings.
func stringFields(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for k := range in {
		if s := models.StringField(in, k); s != "" {
			out[k] = s
			continue
		}
		if v := in[k]; v != nil {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
