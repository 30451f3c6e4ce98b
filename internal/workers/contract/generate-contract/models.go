package generatecontract

import "merchant-onboarding/internal/models"

const contentType = "text/plain; charset=utf-8"

// Input mirrors the generate-contract request body.
type Input struct {
	ApplicationID      string                              `json:"applicationId"`
	PersonalData       map[string]interface{}              `json:"personalData"`
	BusinessData       map[string]interface{}              `json:"businessData"`
	MerchantTerms      *models.Terms                       `json:"merchantTerms,omitempty"`
	ProcessedDocuments map[string]models.ProcessedDocument `json:"processedDocuments,omitempty"`
	Signature          string                              `json:"signature"`
	Agreements         map[string]bool                     `json:"agreements,omitempty"`
}

type Output struct {
	Success       bool   `json:"success"`
	ContractID    string `json:"contractId"`
	Filename      string `json:"filename"`
	DownloadURL   string `json:"downloadUrl"`
	Message       string `json:"message"`
	ApplicationID string `json:"applicationId"`
	StorageMode   string `json:"storageMode"`
}

func (o *Output) Response() models.GenerateContractResponse {
	return models.GenerateContractResponse{
		Success:       o.Success,
		Filename:      o.Filename,
		DownloadURL:   o.DownloadURL,
		Message:       o.Message,
		ApplicationID: o.ApplicationID,
	}
}
