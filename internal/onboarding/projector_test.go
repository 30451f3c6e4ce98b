package onboarding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchant-onboarding/internal/models"
)

func TestProjectResults_FallbackTerms(t *testing.T) {
	app := withProcessed(t, NewApplication(), CategoryBankStatement)

	view := ProjectResults(app)

	assert.True(t, view.DefaultTermsUsed)
	assert.Equal(t, DefaultTerms, view.Terms)
	assert.Equal(t, "2.9%", view.Terms.Rate)
	assert.Equal(t, "$0.30", view.Terms.TransactionFee)
	assert.Equal(t, "$50,000", view.Terms.DailyLimit)
	assert.Equal(t, "$500,000", view.Terms.MonthlyVolume)
	assert.Equal(t, "Next business day", view.Terms.Settlement)
	assert.Equal(t, "12 months", view.Terms.ContractLength)
	assert.Equal(t, "$1,450", view.Terms.HandNetProfit)
	assert.Equal(t, "PENDING", view.Status)
	assert.Equal(t, 0, view.RiskScore)
	assert.Equal(t, "UNKNOWN", view.RiskLevel)
	assert.Equal(t, "Calculating...", view.ProcessingTime)
	assert.Equal(t, NextSteps, view.NextSteps)
}

func TestProjectResults_Decision(t *testing.T) {
	tests := []struct {
		name     string
		terms    *Terms
		expected Terms
		defaults bool
	}{
		{
			name:     "no terms",
			expected: DefaultTerms,
			defaults: true,
		},
		{
			name:  "partial terms fall back per field",
			terms: &Terms{Rate: "3.5%", DailyLimit: "$30,000", HandNetProfit: " "},
			expected: Terms{
				Rate:           "3.5%",
				TransactionFee: "$0.30",
				DailyLimit:     "$30,000",
				MonthlyVolume:  "$500,000",
				Settlement:     "Next business day",
				ContractLength: "12 months",
				HandNetProfit:  "$1,450",
			},
		},
		{
			name: "complete terms",
			terms: &Terms{
				Rate:                    "3.2%",
				TransactionFee:          "$0.30",
				DailyLimit:              "$40,000",
				MonthlyVolume:           "$400,000",
				Settlement:              "Next business day",
				ContractLength:          "12 months",
				HandNetProfit:           "$77,320",
				EstimatedMonthlyRevenue: "$80,000",
				EstimatedFees:           "$2,680",
			},
			expected: Terms{
				Rate:                    "3.2%",
				TransactionFee:          "$0.30",
				DailyLimit:              "$40,000",
				MonthlyVolume:           "$400,000",
				Settlement:              "Next business day",
				ContractLength:          "12 months",
				HandNetProfit:           "$77,320",
				EstimatedMonthlyRevenue: "$80,000",
				EstimatedFees:           "$2,680",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApplication()
			app.ApplicationID = "APP-1"
			app.Submission = Submission{State: Submitted, Decision: &Decision{
				ApplicationID:  "APP-1",
				ApprovalStatus: models.ApprovalApproved,
				RiskScore:      82,
				RiskLevel:      "LOW",
				Terms:          tt.terms,
			}}

			view := ProjectResults(app)
			assert.Equal(t, tt.expected, view.Terms)
			assert.Equal(t, tt.defaults, view.DefaultTermsUsed)
			assert.Equal(t, models.ApprovalApproved, view.Status)
			assert.Equal(t, 82, view.RiskScore)
			assert.Equal(t, "LOW", view.RiskLevel)
			assert.Equal(t, FallbackProcessingTime, view.ProcessingTime)
		})
	}
}

func TestProjectResults_DoesNotMutate(t *testing.T) {
	app := submitted(t, models.ApprovalApproved)
	before := app.Clone()

	view := ProjectResults(app)
	view.Terms.Rate = "99%"
	view.NextSteps[0] = "changed"

	assert.Equal(t, before, app)
	assert.Equal(t, "Review and sign digital contract", NextSteps[0])
}

func TestMerchantName(t *testing.T) {
	tests := []struct {
		name     string
		personal Fields
		business Fields
		expected string
	}{
		{"business name", Fields{"firstName": "Jane"}, Fields{"businessName": "Acme Corp"}, "Acme Corp"},
		{"full name", Fields{"firstName": "Jane", "lastName": "Doe"}, Fields{}, "Jane Doe"},
		{"first name only", Fields{"firstName": "Jane"}, Fields{"businessName": "  "}, "Jane"},
		{"nothing", Fields{}, Fields{}, "Your Business"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApplication()
			app.Personal = tt.personal
			app.Business = tt.business
			assert.Equal(t, tt.expected, MerchantName(app))
		})
	}
}

func TestProjectContract(t *testing.T) {
	app := submitted(t, models.ApprovalApproved)
	app.Business["businessName"] = "Acme Corp"

	view := ProjectContract(app)

	assert.Equal(t, "APP-1", view.ApplicationID)
	assert.Equal(t, "Acme Corp", view.MerchantName)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), view.ApprovalDate)
	assert.Equal(t, time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC), view.EffectiveDate)
	assert.Equal(t, "3.2%", view.Terms.Rate)
	assert.Equal(t, "$0.30", view.Terms.TransactionFee)
	assert.Equal(t, ContractStatusNone, view.Status)
}

func TestProjectProcessing(t *testing.T) {
	tests := []struct {
		state    SubmissionState
		expected string
	}{
		{NotSubmitted, StepPending},
		{Submitting, StepInProgress},
		{Submitted, StepComplete},
		{SubmissionFailed, StepHalted},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			app := withProcessed(t, NewApplication(), CategoryEINLetter)
			app.Submission = Submission{State: tt.state}

			view := ProjectProcessing(app)
			require.Len(t, view.Steps, len(ProcessingSteps))
			assert.Equal(t, "Document Analysis", view.Steps[0].Name)
			assert.Equal(t, "Final Review", view.Steps[5].Name)
			for _, step := range view.Steps {
				assert.Equal(t, tt.expected, step.Status)
			}
			assert.Equal(t, 1, view.Documents)
		})
	}
}

func TestCurrentScreen(t *testing.T) {
	documents := NewApplication()
	documents.CurrentStep = StageDocuments

	submitting := NewApplication()
	submitting.CurrentStep = StageReview
	submitting.Submission.State = Submitting

	failed := NewApplication()
	failed.CurrentStep = StageReview
	failed.Submission = Submission{State: SubmissionFailed, Err: "boom"}

	results := NewApplication()
	results.ApplicationID = "APP-7"
	results.Submission = Submission{State: Submitted, Decision: &Decision{ApplicationID: "APP-7"}}

	contract := results.Clone()
	contract.Contract.Status = ContractStatusGenerating

	tests := []struct {
		name     string
		app      Application
		expected string
	}{
		{"initial", NewApplication(), "onboarding/personal-details"},
		{"documents", documents, "onboarding/documents-upload"},
		{"submitting", submitting, "processing"},
		{"failed", failed, "onboarding/review-submit"},
		{"results", results, "results"},
		{"contract", contract, "contract/APP-7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CurrentScreen(tt.app))
		})
	}
}
