// Package onboarding implements the merchant onboarding workflow: a single
// Application aggregate mutated only through commands, a step sequencer with
// validation guards, a per-category document upload tracker, and pure view
// projections for the processing, results and contract screens.
package onboarding

import (
	"fmt"
	"time"

	"merchant-onboarding/internal/models"
)

// DocumentCategory names one of the fixed document slots.
type DocumentCategory string

const (
	CategoryBusinessLicense       DocumentCategory = "business_license"
	CategoryEINLetter             DocumentCategory = "ein_letter"
	CategoryDriversLicense        DocumentCategory = "drivers_license"
	CategoryBankStatement         DocumentCategory = "bank_statement"
	CategoryArticlesIncorporation DocumentCategory = "articles_incorporation"
)

// Categories lists the accepted document categories in display order.
var Categories = []DocumentCategory{
	CategoryBusinessLicense,
	CategoryEINLetter,
	CategoryDriversLicense,
	CategoryBankStatement,
	CategoryArticlesIncorporation,
}

// ParseCategory validates a category tag from outside the package.
func ParseCategory(s string) (DocumentCategory, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown document category %q", s)
}

func (c DocumentCategory) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

// DocumentStatus is the per-category upload state.
type DocumentStatus string

const (
	DocumentIdle      DocumentStatus = "idle"
	DocumentUploading DocumentStatus = "uploading"
	DocumentProcessed DocumentStatus = "processed"
	DocumentFailed    DocumentStatus = "failed"
)

// FileRef identifies a selected file. Content is never stored on the aggregate.
type FileRef struct {
	Name string
	Size int64
}

// Extraction is the analysed content of one document.
type Extraction struct {
	ConfidenceScore float64
	FullTextLength  int
	FormFields      map[string]string
}

func (e Extraction) clone() Extraction {
	e.FormFields = cloneStrings(e.FormFields)
	return e
}

// DocumentRecord tracks one category. Extraction is set only when Processed,
// Err only when Failed. Attempt identifies the latest BeginUpload.
type DocumentRecord struct {
	Category   DocumentCategory
	File       FileRef
	Status     DocumentStatus
	Extraction *Extraction
	Err        string
	Attempt    uint64
}

// Documents maps each started category to its record.
type Documents map[DocumentCategory]DocumentRecord

func (d Documents) clone() Documents {
	out := make(Documents, len(d))
	for k, rec := range d {
		if rec.Extraction != nil {
			ext := rec.Extraction.clone()
			rec.Extraction = &ext
		}
		out[k] = rec
	}
	return out
}

// Fields holds form values; each value is a string or a number.
type Fields map[string]interface{}

func (f Fields) clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the field as display text.
func (f Fields) String(key string) string {
	return models.StringField(f, key)
}

// Section selects which details map SetField writes to.
type Section string

const (
	SectionPersonal Section = "personal"
	SectionBusiness Section = "business"
)

// Terms are the merchant pricing terms as display strings.
type Terms = models.Terms

// Decision is the risk/approval outcome of a successful submission.
type Decision struct {
	ApplicationID   string
	ApprovalStatus  string
	RiskScore       int
	RiskLevel       string
	Terms           *Terms
	ProcessingTime  string
	Message         string
	StorageMode     string
	SavedToDatabase bool
	DecidedAt       time.Time
}

func (d *Decision) clone() *Decision {
	if d == nil {
		return nil
	}
	out := *d
	if d.Terms != nil {
		t := *d.Terms
		out.Terms = &t
	}
	return &out
}

// SubmissionState is the application's submission lifecycle.
type SubmissionState string

const (
	NotSubmitted     SubmissionState = "not_submitted"
	Submitting       SubmissionState = "submitting"
	Submitted        SubmissionState = "submitted"
	SubmissionFailed SubmissionState = "failed"
)

// Submission holds the decision only when Submitted and the error only when
// failed.
type Submission struct {
	State    SubmissionState
	Decision *Decision
	Err      string
}

// ContractStatus is the contract lifecycle, independent of the submission.
type ContractStatus string

const (
	ContractStatusNone       ContractStatus = ""
	ContractStatusGenerating ContractStatus = "generating"
	ContractStatusGenerated  ContractStatus = "GENERATED"
	ContractStatusFailed     ContractStatus = "failed"
)

// Contract agreement clauses that must all be accepted before signing.
var RequiredAgreements = []string{"terms", "privacy", "compliance", "pricing"}

type Contract struct {
	Status      ContractStatus
	Signature   string
	Agreements  map[string]bool
	Filename    string
	DownloadURL string
	Err         string
	GeneratedAt time.Time
}

// StatusCheck tracks the post-submission status poll.
type StatusCheck struct {
	InFlight  bool
	Err       string
	Source    string
	CheckedAt time.Time
}

// ProcessingResult is the most recent successful extraction.
type ProcessingResult struct {
	Category   DocumentCategory
	Extraction Extraction
}

// Application is the root aggregate. It is owned by the Store goroutine;
// everything handed out is a deep copy.
type Application struct {
	// Session increments on every Reset. Completions carry the session they
	// were issued under.
	Session uint64

	ApplicationID string
	CurrentStep   Stage
	Personal      Fields
	Business      Fields
	Documents     Documents
	Submission    Submission
	Contract      Contract
	StatusCheck   StatusCheck

	BackendConnected     bool
	ConnectionError      string
	LastProcessingResult *ProcessingResult
	StorageMode          string
	SavedToDatabase      bool

	attemptSeq uint64
}

// NewApplication returns the empty initial state for session 1.
func NewApplication() Application {
	return newSession(1)
}

func newSession(session uint64) Application {
	return Application{
		Session:     session,
		CurrentStep: StagePersonal,
		Personal:    Fields{},
		Business:    Fields{},
		Documents:   Documents{},
		Submission:  Submission{State: NotSubmitted},
	}
}

// Clone returns a deep copy that shares no maps or pointers with a.
func (a Application) Clone() Application {
	out := a
	out.Personal = a.Personal.clone()
	out.Business = a.Business.clone()
	out.Documents = a.Documents.clone()
	out.Submission.Decision = a.Submission.Decision.clone()
	out.Contract.Agreements = cloneBools(a.Contract.Agreements)
	if a.LastProcessingResult != nil {
		lpr := *a.LastProcessingResult
		lpr.Extraction = lpr.Extraction.clone()
		out.LastProcessingResult = &lpr
	}
	return out
}

// Decision returns the submission decision, or nil when not Submitted.
func (a Application) Decision() *Decision {
	if a.Submission.State != Submitted {
		return nil
	}
	return a.Submission.Decision
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneBools(m map[string]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
