package onboarding

import (
	"strings"
	"time"
)

// DefaultTerms are shown when no real decision is available, and fill any
// blank field of a real decision's terms.
var DefaultTerms = Terms{
	Rate:           "2.9%",
	TransactionFee: "$0.30",
	DailyLimit:     "$50,000",
	MonthlyVolume:  "$500,000",
	Settlement:     "Next business day",
	ContractLength: "12 months",
	HandNetProfit:  "$1,450",
}

// Results fallbacks.
const (
	FallbackStatus         = "PENDING"
	FallbackRiskLevel      = "UNKNOWN"
	FallbackProcessingTime = "Calculating..."
	FallbackMerchantName   = "Your Business"
)

// NextSteps are listed on the results screen.
var NextSteps = []string{
	"Review and sign digital contract",
	"Complete bank account verification",
	"Receive payment gateway credentials",
	"Integration support call scheduled",
}

// ResultsView is the decision screen.
type ResultsView struct {
	ApplicationID  string
	Status         string
	RiskScore      int
	RiskLevel      string
	Terms          Terms
	ProcessingTime string
	Message        string
	StorageMode    string
	NextSteps      []string
	// DefaultTermsUsed is true when no real terms were available at all.
	DefaultTermsUsed bool
}

// ProjectResults derives the results screen from app.
func ProjectResults(app Application) ResultsView {
	view := ResultsView{
		ApplicationID:  app.ApplicationID,
		Status:         FallbackStatus,
		RiskLevel:      FallbackRiskLevel,
		ProcessingTime: FallbackProcessingTime,
		StorageMode:    app.StorageMode,
		NextSteps:      append([]string(nil), NextSteps...),
	}

	d := app.Decision()
	if d == nil || d.Terms == nil {
		view.Terms = DefaultTerms
		view.DefaultTermsUsed = true
	} else {
		view.Terms = mergeTerms(*d.Terms, DefaultTerms)
	}
	if d == nil {
		return view
	}

	view.Status = orDefault(d.ApprovalStatus, FallbackStatus)
	view.RiskScore = d.RiskScore
	view.RiskLevel = orDefault(d.RiskLevel, FallbackRiskLevel)
	view.ProcessingTime = orDefault(d.ProcessingTime, FallbackProcessingTime)
	view.Message = d.Message
	return view
}

func mergeTerms(t, fallback Terms) Terms {
	t.Rate = orDefault(t.Rate, fallback.Rate)
	t.TransactionFee = orDefault(t.TransactionFee, fallback.TransactionFee)
	t.DailyLimit = orDefault(t.DailyLimit, fallback.DailyLimit)
	t.MonthlyVolume = orDefault(t.MonthlyVolume, fallback.MonthlyVolume)
	t.Settlement = orDefault(t.Settlement, fallback.Settlement)
	t.ContractLength = orDefault(t.ContractLength, fallback.ContractLength)
	t.HandNetProfit = orDefault(t.HandNetProfit, fallback.HandNetProfit)
	t.EstimatedMonthlyRevenue = orDefault(t.EstimatedMonthlyRevenue, fallback.EstimatedMonthlyRevenue)
	t.EstimatedFees = orDefault(t.EstimatedFees, fallback.EstimatedFees)
	return t
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// ContractView is the contract signing screen.
type ContractView struct {
	ApplicationID string
	MerchantName  string
	ApprovalDate  time.Time
	EffectiveDate time.Time
	Terms         Terms
	Status        ContractStatus
	Signature     string
	Filename      string
	DownloadURL   string
	Err           string
}

// ProjectContract derives the contract screen from app.
func ProjectContract(app Application) ContractView {
	results := ProjectResults(app)
	view := ContractView{
		ApplicationID: app.ApplicationID,
		MerchantName:  MerchantName(app),
		Terms:         results.Terms,
		Status:        app.Contract.Status,
		Signature:     app.Contract.Signature,
		Filename:      app.Contract.Filename,
		DownloadURL:   app.Contract.DownloadURL,
		Err:           app.Contract.Err,
	}
	if d := app.Decision(); d != nil && !d.DecidedAt.IsZero() {
		view.ApprovalDate = d.DecidedAt
		view.EffectiveDate = d.DecidedAt.AddDate(0, 0, 1)
	}
	return view
}

// MerchantName is the business name, else the applicant's full name, else
// a generic placeholder.
func MerchantName(app Application) string {
	if name := strings.TrimSpace(app.Business.String("businessName")); name != "" {
		return name
	}
	full := strings.TrimSpace(app.Personal.String("firstName") + " " + app.Personal.String("lastName"))
	if full != "" {
		return full
	}
	return FallbackMerchantName
}

// Processing step states.
const (
	StepPending    = "pending"
	StepInProgress = "in_progress"
	StepComplete   = "complete"
	StepHalted     = "halted"
)

// ProcessingSteps is the fixed review pipeline shown while a decision is made.
var ProcessingSteps = []string{
	"Document Analysis",
	"Identity Verification",
	"Credit & Risk Assessment",
	"Bank Validation",
	"Compliance Screening",
	"Final Review",
}

type ProcessingStep struct {
	Name   string
	Status string
}

type ProcessingView struct {
	Steps      []ProcessingStep
	Documents  int
	Submission SubmissionState
	Err        string
}

// ProjectProcessing derives the processing screen from the submission state.
func ProjectProcessing(app Application) ProcessingView {
	status := StepPending
	switch app.Submission.State {
	case Submitting:
		status = StepInProgress
	case Submitted:
		status = StepComplete
	case SubmissionFailed:
		status = StepHalted
	}

	steps := make([]ProcessingStep, len(ProcessingSteps))
	for i, name := range ProcessingSteps {
		steps[i] = ProcessingStep{Name: name, Status: status}
	}
	return ProcessingView{
		Steps:      steps,
		Documents:  len(ProcessedDocuments(app)),
		Submission: app.Submission.State,
		Err:        app.Submission.Err,
	}
}

// CurrentScreen is the route the client should show for app.
func CurrentScreen(app Application) string {
	switch {
	case app.Contract.Status != ContractStatusNone && app.ApplicationID != "":
		return "contract/" + app.ApplicationID
	case app.Submission.State == Submitted:
		return "results"
	case app.Submission.State == Submitting:
		return "processing"
	default:
		return "onboarding/" + ViewFor(app.CurrentStep)
	}
}
