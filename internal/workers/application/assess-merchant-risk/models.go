package assessmerchantrisk

import "merchant-onboarding/internal/models"

type Input struct {
	PersonalData       map[string]interface{}              `json:"personalData"`
	BusinessData       map[string]interface{}              `json:"businessData"`
	ProcessedDocuments map[string]models.ProcessedDocument `json:"processedDocuments"`
}

type Output struct {
	ApplicationID  string        `json:"applicationId"`
	ApprovalStatus string        `json:"approvalStatus"`
	RiskScore      int           `json:"riskScore"`
	RiskLevel      string        `json:"riskLevel"`
	Terms          *models.Terms `json:"terms,omitempty"`
	ProcessingTime string        `json:"processingTime"`
	Message        string        `json:"message"`
}

// Risk levels
const (
	RiskLevelLow    = "LOW"
	RiskLevelMedium = "MEDIUM"
	RiskLevelHigh   = "HIGH"
)

// Business form keys read by the assessment.
const (
	FieldAnnualRevenue    = "annualRevenue"
	FieldMonthlyVolume    = "monthlyProcessingVolume"
	FieldIndustry         = "industry"
	defaultMonthlyVolume  = 50000
	fallbackRevenue       = 50000
	fallbackFees          = 1500
	perTransactionFeeText = "$0.30"
)
