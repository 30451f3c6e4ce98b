// internal/models/application.go
package models

import (
	"strconv"
	"time"
)

// Approval statuses.
const (
	ApprovalApproved = "APPROVED"
	ApprovalPending  = "PENDING"
	ApprovalDenied   = "DENIED"
)

// Storage modes reported by submit-application.
const (
	StorageModeDatabase = "database"
	StorageModeMemory   = "memory"
)

// Status sources reported by the status endpoint.
const (
	SourceDatabase       = "database"
	SourceMemoryFallback = "memory_fallback"
)

// Terms are the merchant pricing terms. All values are display strings.
type Terms struct {
	Rate                    string `json:"rate,omitempty"`
	TransactionFee          string `json:"transaction_fee,omitempty"`
	DailyLimit              string `json:"daily_limit,omitempty"`
	MonthlyVolume           string `json:"monthly_volume,omitempty"`
	Settlement              string `json:"settlement,omitempty"`
	ContractLength          string `json:"contract_length,omitempty"`
	HandNetProfit           string `json:"hand_net_profit,omitempty"`
	EstimatedMonthlyRevenue string `json:"estimated_monthly_revenue,omitempty"`
	EstimatedFees           string `json:"estimated_fees,omitempty"`
}

// AIProcessing is the extraction block returned for an analysed document.
type AIProcessing struct {
	ConfidenceScore float64                `json:"confidence_score"`
	FullTextLength  int                    `json:"full_text_length"`
	FormFields      map[string]interface{} `json:"form_fields"`
}

type ProcessDocumentResponse struct {
	Status       string       `json:"status"`
	DocumentType string       `json:"document_type"`
	Filename     string       `json:"filename"`
	FileSize     int64        `json:"file_size"`
	AIProcessing AIProcessing `json:"ai_processing"`
}

// ProcessedDocument wraps an extraction inside a submission payload.
type ProcessedDocument struct {
	AIProcessing AIProcessing `json:"ai_processing"`
}

type SubmitApplicationRequest struct {
	PersonalData       map[string]interface{}       `json:"personal_data" validate:"required"`
	BusinessData       map[string]interface{}       `json:"business_data" validate:"required"`
	ProcessedDocuments map[string]ProcessedDocument `json:"processed_documents" validate:"required,min=1"`
}

type SubmitApplicationResponse struct {
	Status          string `json:"status"`
	ApplicationID   string `json:"application_id"`
	ApprovalStatus  string `json:"approval_status"`
	RiskScore       int    `json:"risk_score"`
	RiskLevel       string `json:"risk_level"`
	Terms           *Terms `json:"terms"`
	ProcessingTime  string `json:"processing_time"`
	Message         string `json:"message"`
	SavedToDatabase bool   `json:"saved_to_database"`
	StorageMode     string `json:"storage_mode"`
}

type ApplicationStatusResponse struct {
	ApplicationID      string `json:"application_id"`
	Status             string `json:"status"`
	RiskScore          int    `json:"risk_score"`
	RiskLevel          string `json:"risk_level"`
	Terms              *Terms `json:"terms"`
	CreatedAt          string `json:"created_at"`
	ProcessingComplete bool   `json:"processing_complete"`
	Source             string `json:"source"`
}

type GenerateContractRequest struct {
	ApplicationID      string                       `json:"application_id"`
	PersonalData       map[string]interface{}       `json:"personal_data"`
	BusinessData       map[string]interface{}       `json:"business_data"`
	MerchantTerms      *Terms                       `json:"merchant_terms"`
	ProcessedDocuments map[string]ProcessedDocument `json:"processed_documents"`
	Signature          string                       `json:"signature" validate:"required,min=3"`
	Agreements         map[string]bool              `json:"agreements"`
}

type GenerateContractResponse struct {
	Success       bool   `json:"success"`
	Filename      string `json:"filename"`
	DownloadURL   string `json:"download_url"`
	Message       string `json:"message"`
	ApplicationID string `json:"application_id"`
}

type ConnectionTestResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

// ApplicationRecord is a persisted, decided application.
type ApplicationRecord struct {
	ApplicationID      string                       `json:"application_id"`
	PersonalData       map[string]interface{}       `json:"personal_data"`
	BusinessData       map[string]interface{}       `json:"business_data"`
	ProcessedDocuments map[string]ProcessedDocument `json:"processed_documents"`
	ApprovalStatus     string                       `json:"approval_status"`
	RiskScore          int                          `json:"risk_score"`
	RiskLevel          string                       `json:"risk_level"`
	Terms              *Terms                       `json:"terms,omitempty"`
	ProcessingTime     string                       `json:"processing_time"`
	CreatedAt          time.Time                    `json:"created_at"`
}

// StringField reads a form value as a string. Numbers decoded from JSON are
// rendered without a trailing ".0".
func StringField(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}
