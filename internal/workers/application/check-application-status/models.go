package checkapplicationstatus

import "merchant-onboarding/internal/models"

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID      string        `json:"applicationId"`
	Status             string        `json:"status"`
	RiskScore          int           `json:"riskScore"`
	RiskLevel          string        `json:"riskLevel"`
	Terms              *models.Terms `json:"terms,omitempty"`
	CreatedAt          string        `json:"createdAt"`
	ProcessingComplete bool          `json:"processingComplete"`
	Source             string        `json:"source"` // database or memory_fallback
}

func (o *Output) Response() models.ApplicationStatusResponse {
	return models.ApplicationStatusResponse{
		ApplicationID:      o.ApplicationID,
		Status:             o.Status,
		RiskScore:          o.RiskScore,
		RiskLevel:          o.RiskLevel,
		Terms:              o.Terms,
		CreatedAt:          o.CreatedAt,
		ProcessingComplete: o.ProcessingComplete,
		Source:             o.Source,
	}
}
