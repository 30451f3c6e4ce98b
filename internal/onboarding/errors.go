package onboarding

import (
	"errors"
	"fmt"

	apperrors "merchant-onboarding/internal/common/errors"
)

// Guard rejection reasons.
const (
	ReasonDocumentRequired     = "at least one document required"
	ReasonProcessingInProgress = "document processing in progress"
	ReasonConsentRequired      = "all consents required"
	ReasonFirstStage           = "already at first stage"
	ReasonSubmissionInProgress = "submission already in progress"
	ReasonAlreadySubmitted     = "application already submitted"
	ReasonNotApproved          = "application not approved"
	ReasonSignatureTooShort    = "signature must be at least 3 characters"
	ReasonAgreementsRequired   = "all agreements must be accepted"
	ReasonContractInProgress   = "contract generation in progress"
	ReasonContractExists       = "contract already generated"
	ReasonNoApplication        = "no submitted application"
	ReasonStatusCheckInFlight  = "status check in progress"
)

// GuardRejectedError reports a command refused by a guard. The Application
// is unchanged.
type GuardRejectedError struct {
	Stage  string
	Reason string
}

func (e *GuardRejectedError) Error() string {
	return fmt.Sprintf("guard rejected at %s: %s", e.Stage, e.Reason)
}

func (e *GuardRejectedError) Unwrap() error { return apperrors.ErrGuardRejected }

func guardRejected(stage, reason string) error {
	return &GuardRejectedError{Stage: stage, Reason: reason}
}

// StaleCompletionError reports a completion for a superseded session or
// upload attempt. It never reaches callers of the convenience methods.
type StaleCompletionError struct {
	Command string
	Detail  string
}

func (e *StaleCompletionError) Error() string {
	return fmt.Sprintf("stale %s: %s", e.Command, e.Detail)
}

func (e *StaleCompletionError) Unwrap() error { return apperrors.ErrStaleCompletion }

func staleCompletion(command, format string, args ...interface{}) error {
	return &StaleCompletionError{Command: command, Detail: fmt.Sprintf(format, args...)}
}

func invalidCommand(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidCommand, fmt.Sprintf(format, args...))
}

// IsGuardRejected reports whether err is a guard rejection.
func IsGuardRejected(err error) bool {
	return errors.Is(err, apperrors.ErrGuardRejected)
}

// IsStale reports whether err is a stale completion.
func IsStale(err error) bool {
	return errors.Is(err, apperrors.ErrStaleCompletion)
}

// RejectionReason extracts the guard reason from err, or "".
func RejectionReason(err error) string {
	var gr *GuardRejectedError
	if errors.As(err, &gr) {
		return gr.Reason
	}
	return ""
}
