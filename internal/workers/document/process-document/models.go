package processdocument

import "merchant-onboarding/internal/models"

// DefaultDocumentType is used when the caller does not tag the upload.
const DefaultDocumentType = "business_license"

// Input carries the raw upload. Content travels base64 encoded in job
// variables.
type Input struct {
	DocumentType string `json:"documentType"`
	Filename     string `json:"filename"`
	Content      []byte `json:"content"`
}

type Output struct {
	FileID       string              `json:"fileId"`
	Status       string              `json:"status"`
	DocumentType string              `json:"documentType"`
	Filename     string              `json:"filename"`
	FileSize     int64               `json:"fileSize"`
	AIProcessing models.AIProcessing `json:"aiProcessing"`
}

// Response renders the output in the upload endpoint's wire format.
func (o *Output) Response() models.ProcessDocumentResponse {
	return models.ProcessDocumentResponse{
		Status:       o.Status,
		DocumentType: o.DocumentType,
		Filename:     o.Filename,
		FileSize:     o.FileSize,
		AIProcessing: o.AIProcessing,
	}
}
