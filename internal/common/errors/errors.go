// Package errors provides standardized error handling for the onboarding
// workflow, the remote-service API and the BPMN job workers.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Workflow errors, surfaced by the client-side store.
const (
	ErrCodeGuardRejected         ErrorCode = "GUARD_REJECTED"
	ErrCodeUploadFailed          ErrorCode = "UPLOAD_FAILED"
	ErrCodeSubmissionFailed      ErrorCode = "SUBMISSION_FAILED"
	ErrCodeConnectionUnavailable ErrorCode = "CONNECTION_UNAVAILABLE"
	ErrCodeStaleCompletion       ErrorCode = "STALE_COMPLETION"
	ErrCodeInvalidCommand        ErrorCode = "INVALID_COMMAND"
	ErrCodeInvalidResponse       ErrorCode = "INVALID_RESPONSE"
)

// Backend errors, raised by the API and job workers.
const (
	ErrCodeInvalidDocument          ErrorCode = "INVALID_DOCUMENT"
	ErrCodeDocumentProcessingFailed ErrorCode = "DOCUMENT_PROCESSING_FAILED"
	ErrCodeApplicationValidation    ErrorCode = "APPLICATION_VALIDATION_FAILED"
	ErrCodeRiskAssessmentFailed     ErrorCode = "RISK_ASSESSMENT_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeCacheUnavailable         ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeSearchIndexFailed        ErrorCode = "SEARCH_INDEX_FAILED"
	ErrCodeApplicationNotFound      ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeApplicationNotApproved   ErrorCode = "APPLICATION_NOT_APPROVED"

	ErrCodeContractGenerationFailed ErrorCode = "CONTRACT_GENERATION_FAILED"
	ErrCodeContractNotFound         ErrorCode = "CONTRACT_NOT_FOUND"
	ErrCodeStorageFailed            ErrorCode = "STORAGE_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// Sentinel errors. Callers wrap them with fmt.Errorf("%w: ...") and test with
// errors.Is.
var (
	ErrGuardRejected         = errors.New("GUARD_REJECTED")
	ErrUploadFailed          = errors.New("UPLOAD_FAILED")
	ErrSubmissionFailed      = errors.New("SUBMISSION_FAILED")
	ErrConnectionUnavailable = errors.New("CONNECTION_UNAVAILABLE")
	ErrStaleCompletion       = errors.New("STALE_COMPLETION")
	ErrInvalidCommand        = errors.New("INVALID_COMMAND")
	ErrInvalidResponse       = errors.New("INVALID_RESPONSE")
	ErrNotFound              = errors.New("NOT_FOUND")
	ErrStoreClosed           = errors.New("STORE_CLOSED")
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel or transport error the StandardError was built from.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a metadata key and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError unwraps err into a *StandardError if one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewGuardRejectedError reports a blocked stage advance. Not retryable: the
// user has to satisfy the guard first.
func NewGuardRejectedError(stage, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGuardRejected,
		Message:   reason,
		Details:   fmt.Sprintf("stage: %s", stage),
		Retryable: false,
		Metadata:  map[string]interface{}{"stage": stage},
		Timestamp: time.Now().UTC(),
		cause:     ErrGuardRejected,
	}
}

// NewUploadFailedError wraps a per-category processing failure.
func NewUploadFailedError(category string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUploadFailed,
		Message:   "Document processing failed",
		Details:   fmt.Sprintf("category: %s, error: %s", category, errText(err)),
		Retryable: true,
		Metadata:  map[string]interface{}{"category": category},
		Timestamp: time.Now().UTC(),
		cause:     ErrUploadFailed,
	}
}

// NewSubmissionFailedError wraps a rejected or failed submission.
func NewSubmissionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionFailed,
		Message:   "Application submission failed",
		Details:   errText(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     ErrSubmissionFailed,
	}
}

// NewConnectionUnavailableError reports an unreachable remote service.
func NewConnectionUnavailableError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConnectionUnavailable,
		Message:   fmt.Sprintf("Service '%s' unavailable", service),
		Details:   errText(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     ErrConnectionUnavailable,
	}
}

// NewStaleCompletionError describes a completion that arrived for a session or
// upload attempt that is no longer current.
func NewStaleCompletionError(command, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStaleCompletion,
		Message:   fmt.Sprintf("Stale %s discarded", command),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     ErrStaleCompletion,
	}
}

// NewInvalidCommandError rejects a malformed command before it reaches a transition.
func NewInvalidCommandError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidCommand,
		Message:   "Command rejected",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     ErrInvalidCommand,
	}
}

// NewInvalidResponseError reports a remote payload that failed schema validation.
func NewInvalidResponseError(operation, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidResponse,
		Message:   fmt.Sprintf("Invalid response from %s", operation),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     ErrInvalidResponse,
	}
}

func NewInvalidDocumentError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidDocument,
		Message:   "Invalid document",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDocumentProcessingFailedError(category string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentProcessingFailed,
		Message:   "Document analysis failed",
		Details:   fmt.Sprintf("documentType: %s, error: %s", category, errText(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewApplicationValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationValidation,
		Message:   "Application data validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewRiskAssessmentFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRiskAssessmentFailed,
		Message:   "Risk assessment failed",
		Details:   errText(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   errText(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   errText(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, errText(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewSearchIndexFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchIndexFailed,
		Message:   "Search index write failed",
		Details:   fmt.Sprintf("index: %s, error: %s", index, errText(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewApplicationNotFoundError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "Application not found",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     ErrNotFound,
	}
}

func NewApplicationNotApprovedError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotApproved,
		Message:   "Approved application not found",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     ErrNotFound,
	}
}

func NewContractGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeContractGenerationFailed,
		Message:   "Contract generation failed",
		Details:   errText(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewContractNotFoundError(filename string) *StandardError {
	return &StandardError{
		Code:      ErrCodeContractNotFound,
		Message:   "Contract file not found",
		Details:   fmt.Sprintf("filename: %s", filename),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     ErrNotFound,
	}
}

func NewStorageFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageFailed,
		Message:   "Object storage operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, errText(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, errText(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   errText(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   errText(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     ErrNotFound,
	}
}

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeStorageFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeConnectionUnavailable:
		return 3

	case ErrCodeDocumentProcessingFailed,
		ErrCodeContractGenerationFailed,
		ErrCodeRiskAssessmentFailed,
		ErrCodeSearchIndexFailed:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// Internal and BPMN codes are identical.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "GUARD") || strings.Contains(codeStr, "STALE") || strings.Contains(codeStr, "COMMAND"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "UPLOAD") || strings.Contains(codeStr, "DOCUMENT"):
		return "DOCUMENT"
	case strings.Contains(codeStr, "SUBMISSION") || strings.Contains(codeStr, "RISK") || strings.Contains(codeStr, "APPLICATION"):
		return "APPLICATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "CACHE") || strings.Contains(codeStr, "SEARCH"):
		return "DATABASE"
	case strings.Contains(codeStr, "CONTRACT") || strings.Contains(codeStr, "STORAGE"):
		return "CONTRACT"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "CONNECTION") || strings.Contains(codeStr, "RESPONSE") || strings.Contains(codeStr, "EXTERNAL") || strings.Contains(codeStr, "TIMEOUT"):
		return "TRANSPORT"
	default:
		return "OTHER"
	}
}
