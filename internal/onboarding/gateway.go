package onboarding

import (
	"context"
	"io"
)

// Gateway is the remote onboarding service as seen by the Store.
type Gateway interface {
	ProcessDocument(ctx context.Context, category DocumentCategory, file FileRef, content []byte) (Extraction, error)
	SubmitApplication(ctx context.Context, req SubmissionRequest) (Decision, error)
	CheckStatus(ctx context.Context, applicationID string) (StatusReport, error)
	GenerateContract(ctx context.Context, applicationID string, payload ContractPayload) (ContractFile, error)
	DownloadContract(ctx context.Context, filename string) (io.ReadCloser, error)
	TestConnection(ctx context.Context) error
}

// SubmissionRequest carries the details and processed documents of a submit.
type SubmissionRequest struct {
	Personal  Fields
	Business  Fields
	Documents map[DocumentCategory]Extraction
}

// StatusReport is the current state of a submitted application.
type StatusReport struct {
	ApplicationID      string
	Status             string
	RiskScore          int
	RiskLevel          string
	Terms              *Terms
	ProcessingComplete bool
	Source             string
}

// ContractPayload is everything the remote service needs to render a contract.
type ContractPayload struct {
	Personal   Fields
	Business   Fields
	Terms      *Terms
	Documents  map[DocumentCategory]Extraction
	Signature  string
	Agreements map[string]bool
}

// ContractFile identifies a generated contract document.
type ContractFile struct {
	Success     bool
	Filename    string
	DownloadURL string
	Message     string
}
