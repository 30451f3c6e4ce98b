package senddecisionnotification

import "merchant-onboarding/internal/models"

type Input struct {
	ApplicationID  string                 `json:"applicationId"`
	ApprovalStatus string                 `json:"approvalStatus"`
	RiskScore      int                    `json:"riskScore"`
	RiskLevel      string                 `json:"riskLevel"`
	Terms          *models.Terms          `json:"terms,omitempty"`
	PersonalData   map[string]interface{} `json:"personalData"`
	BusinessData   map[string]interface{} `json:"businessData"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	EmailStatus    string `json:"emailStatus"`
	EventStatus    string `json:"eventStatus"`
	SentAt         string `json:"sentAt"` // ISO 8601
}

// Delivery statuses per channel
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
	StatusSkipped  = "skipped" // enabled but nothing to send to
)

// EventType is the SNS message attribute identifying decision events.
const EventType = "merchant.application.decided"
