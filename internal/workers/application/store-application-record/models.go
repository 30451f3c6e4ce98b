package storeapplicationrecord

import "merchant-onboarding/internal/models"

type Input struct {
	ApplicationID      string                              `json:"applicationId"`
	PersonalData       map[string]interface{}              `json:"personalData"`
	BusinessData       map[string]interface{}              `json:"businessData"`
	ProcessedDocuments map[string]models.ProcessedDocument `json:"processedDocuments"`
	ApprovalStatus     string                              `json:"approvalStatus"`
	RiskScore          int                                 `json:"riskScore"`
	RiskLevel          string                              `json:"riskLevel"`
	Terms              *models.Terms                       `json:"terms,omitempty"`
	ProcessingTime     string                              `json:"processingTime"`
}

type Output struct {
	SavedToDatabase bool   `json:"savedToDatabase"`
	StorageMode     string `json:"storageMode"`
	StoredAt        string `json:"storedAt"` // RFC 3339
}
