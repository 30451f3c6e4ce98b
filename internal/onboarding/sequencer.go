package onboarding

// Stage is a position in the onboarding form.
type Stage int

const (
	StagePersonal Stage = iota
	StageBusiness
	StageDocuments
	StageReview
)

// StageCount is the number of form stages.
const StageCount = 4

var stageNames = [StageCount]string{"Personal", "Business", "Documents", "Review"}

var stageViews = [StageCount]string{
	"personal-details",
	"business-information",
	"documents-upload",
	"review-submit",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= StageCount {
		return "Unknown"
	}
	return stageNames[s]
}

// Valid reports whether s is within range.
func (s Stage) Valid() bool {
	return s >= 0 && int(s) < StageCount
}

// Stages returns the stages in order.
func Stages() []Stage {
	return []Stage{StagePersonal, StageBusiness, StageDocuments, StageReview}
}

// ViewFor maps a stage to its screen identifier.
func ViewFor(s Stage) string {
	if !s.Valid() {
		return ""
	}
	return stageViews[s]
}

// Consent flags required on the review stage.
const (
	ConsentTerms           = "terms"
	ConsentAccuracy        = "accuracy"
	ConsentBackgroundCheck = "backgroundCheck"
)

var requiredConsents = []string{ConsentTerms, ConsentAccuracy, ConsentBackgroundCheck}

// Guard decides whether the user may leave stage s moving forward. Consents
// are only read on the review stage and are never stored on the Application.
func Guard(app Application, s Stage, consents map[string]bool) error {
	switch s {
	case StageDocuments:
		if len(ProcessedDocuments(app)) == 0 {
			return guardRejected(s.String(), ReasonDocumentRequired)
		}
	case StageReview:
		for _, c := range requiredConsents {
			if !consents[c] {
				return guardRejected(s.String(), ReasonConsentRequired)
			}
		}
		if AnyUploading(app) {
			return guardRejected(s.String(), ReasonProcessingInProgress)
		}
		// a re-upload from review may have replaced the last processed document
		if len(ProcessedDocuments(app)) == 0 {
			return guardRejected(s.String(), ReasonDocumentRequired)
		}
	}
	return nil
}
