package gateway

import "merchant-onboarding/internal/common/validation"

const termsSchema = `{
	"type": ["object", "null"],
	"properties": {
		"rate": {"type": "string"},
		"transaction_fee": {"type": "string"},
		"daily_limit": {"type": "string"},
		"monthly_volume": {"type": "string"},
		"settlement": {"type": "string"},
		"contract_length": {"type": "string"},
		"hand_net_profit": {"type": "string"},
		"estimated_monthly_revenue": {"type": "string"},
		"estimated_fees": {"type": "string"}
	}
}`

var processDocumentSchema = validation.MustCompile("process-document-response", `{
	"type": "object",
	"required": ["ai_processing"],
	"properties": {
		"status": {"type": "string"},
		"document_type": {"type": "string"},
		"filename": {"type": "string"},
		"file_size": {"type": "integer", "minimum": 0},
		"ai_processing": {
			"type": "object",
			"required": ["confidence_score"],
			"properties": {
				"confidence_score": {"type": "number", "minimum": 0, "maximum": 1},
				"full_text_length": {"type": "integer", "minimum": 0},
				"form_fields": {"type": ["object", "null"]}
			}
		}
	}
}`)

var submitApplicationSchema = validation.MustCompile("submit-application-response", `{
	"type": "object",
	"required": ["approval_status"],
	"properties": {
		"status": {"type": "string"},
		"application_id": {"type": "string"},
		"approval_status": {"type": "string", "enum": ["APPROVED", "PENDING", "DENIED"]},
		"risk_score": {"type": "integer", "minimum": 0, "maximum": 100},
		"risk_level": {"type": "string"},
		"terms": `+termsSchema+`,
		"processing_time": {"type": "string"},
		"message": {"type": "string"},
		"saved_to_database": {"type": "boolean"},
		"storage_mode": {"type": "string"}
	}
}`)

var applicationStatusSchema = validation.MustCompile("application-status-response", `{
	"type": "object",
	"required": ["application_id", "status"],
	"properties": {
		"application_id": {"type": "string", "minLength": 1},
		"status": {"type": "string"},
		"risk_score": {"type": "integer", "minimum": 0, "maximum": 100},
		"risk_level": {"type": "string"},
		"terms": `+termsSchema+`,
		"created_at": {"type": "string"},
		"processing_complete": {"type": "boolean"},
		"source": {"type": "string", "enum": ["database", "memory_fallback"]}
	}
}`)

var generateContractSchema = validation.MustCompile("generate-contract-response", `{
	"type": "object",
	"required": ["success"],
	"properties": {
		"success": {"type": "boolean"},
		"filename": {"type": "string"},
		"download_url": {"type": "string"},
		"message": {"type": "string"},
		"application_id": {"type": "string"}
	}
}`)

var connectionTestSchema = validation.MustCompile("connection-test-response", `{
	"type": "object",
	"required": ["status"],
	"properties": {
		"message": {"type": "string"},
		"status": {"type": "string"}
	}
}`)
