package api

import "merchant-onboarding/internal/common/validation"

// Request bodies are checked for shape before they are decoded; struct rules
// (required fields, minimum sizes) are left to the validator tags.

var submitApplicationSchema = validation.MustCompile("submit-application-request", `{
	"type": "object",
	"required": ["personal_data", "business_data", "processed_documents"],
	"properties": {
		"personal_data": {"type": "object"},
		"business_data": {"type": "object"},
		"processed_documents": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["ai_processing"],
				"properties": {
					"ai_processing": {
						"type": "object",
						"properties": {
							"confidence_score": {"type": "number", "minimum": 0, "maximum": 1},
							"full_text_length": {"type": "integer", "minimum": 0},
							"form_fields": {"type": ["object", "null"]}
						}
					}
				}
			}
		}
	}
}`)

var generateContractSchema = validation.MustCompile("generate-contract-request", `{
	"type": "object",
	"required": ["signature"],
	"properties": {
		"application_id": {"type": "string"},
		"personal_data": {"type": ["object", "null"]},
		"business_data": {"type": ["object", "null"]},
		"merchant_terms": {"type": ["object", "null"]},
		"processed_documents": {"type": ["object", "null"]},
		"signature": {"type": "string"},
		"agreements": {
			"type": ["object", "null"],
			"additionalProperties": {"type": "boolean"}
		}
	}
}`)
