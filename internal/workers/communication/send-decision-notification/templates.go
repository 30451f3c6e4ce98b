package senddecisionnotification

import (
	"fmt"
	"strings"

	"merchant-onboarding/internal/models"
)

type emailTemplate struct {
	subject string
	body    string
}

func decisionTemplates() map[string]emailTemplate {
	return map[string]emailTemplate{
		models.ApprovalApproved: {
			subject: "Your merchant application {{applicationId}} is approved",
			body: "Hello {{firstName}},\n\n" +
				"Good news: {{businessName}} has been approved for payment processing.\n" +
				"Processing rate: {{rate}}, daily limit: {{dailyLimit}}, settlement: {{settlement}}.\n\n" +
				"Next, review and sign your digital contract to activate your account.\n",
		},
		models.ApprovalPending: {
			subject: "Your merchant application {{applicationId}} is under review",
			body: "Hello {{firstName}},\n\n" +
				"We received the application for {{businessName}} and it is under manual review.\n" +
				"We will email you once a decision is made.\n",
		},
		models.ApprovalDenied: {
			subject: "Update on your merchant application {{applicationId}}",
			body: "Hello {{firstName}},\n\n" +
				"After review we are unable to approve {{businessName}} for payment processing at this time.\n" +
				"You may reapply with additional documentation.\n",
		},
	}
}

func templateData(input *Input) map[string]interface{} {
	data := map[string]interface{}{
		"applicationId":  input.ApplicationID,
		"approvalStatus": input.ApprovalStatus,
		"riskScore":      input.RiskScore,
		"riskLevel":      input.RiskLevel,
		"firstName":      models.StringField(input.PersonalData, "firstName"),
		"businessName":   models.StringField(input.BusinessData, "businessName"),
	}
	if input.Terms != nil {
		data["rate"] = input.Terms.Rate
		data["dailyLimit"] = input.Terms.DailyLimit
		data["settlement"] = input.Terms.Settlement
	}
	return data
}

// renderTemplate replaces {{key}} placeholders and drops the ones with no value.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		switch t := v.(type) {
		case string:
			value = t
		case int:
			value = fmt.Sprintf("%d", t)
		case nil:
		default:
			value = fmt.Sprintf("%v", t)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}
