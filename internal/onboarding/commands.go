package onboarding

import "time"

// Command is a named mutation of the Application. Commands are applied one at
// a time, in arrival order, by the Store goroutine.
type Command interface {
	Name() string
}

// AdvanceStep moves to the next stage. Consents are only read on the review
// stage, where advancing submits the application.
type AdvanceStep struct {
	Consents map[string]bool
}

type RetreatStep struct{}

// SetField merges one form value into a details section.
type SetField struct {
	Section Section
	Key     string
	Value   interface{}
}

// BeginUpload selects a file for a category and starts processing it.
type BeginUpload struct {
	Category DocumentCategory
	File     FileRef
	Content  []byte
}

// CompleteUpload records a successful extraction. Session and Attempt are
// filled in by the Store for gateway completions; zero means "current".
type CompleteUpload struct {
	Category   DocumentCategory
	Extraction Extraction
	Session    uint64
	Attempt    uint64
}

// FailUpload records a processing failure for one category.
type FailUpload struct {
	Category DocumentCategory
	Err      string
	Session  uint64
	Attempt  uint64
}

// Submit sends the application for a decision. Nil sections default to the
// Application's current details and processed documents.
type Submit struct {
	Personal  Fields
	Business  Fields
	Documents map[DocumentCategory]Extraction
}

type SubmitSucceeded struct {
	Decision Decision
	Session  uint64
}

type SubmitFailed struct {
	Err     string
	Session uint64
}

// Reset discards the whole session.
type Reset struct{}

// TestConnection probes the remote service.
type TestConnection struct{}

type ConnectionChecked struct {
	Err     string
	Session uint64
}

// CheckStatus polls the decision of the submitted application.
type CheckStatus struct{}

type StatusChecked struct {
	Report  StatusReport
	Session uint64
}

type StatusCheckFailed struct {
	Err     string
	Session uint64
}

// SignContract accepts the agreement and requests contract generation.
type SignContract struct {
	Signature  string
	Agreements map[string]bool
}

type ContractGenerated struct {
	File    ContractFile
	At      time.Time
	Session uint64
}

type ContractFailed struct {
	Err     string
	Session uint64
}

func (AdvanceStep) Name() string       { return "AdvanceStep" }
func (RetreatStep) Name() string       { return "RetreatStep" }
func (SetField) Name() string          { return "SetField" }
func (BeginUpload) Name() string       { return "BeginUpload" }
func (CompleteUpload) Name() string    { return "CompleteUpload" }
func (FailUpload) Name() string        { return "FailUpload" }
func (Submit) Name() string            { return "Submit" }
func (SubmitSucceeded) Name() string   { return "SubmitSucceeded" }
func (SubmitFailed) Name() string      { return "SubmitFailed" }
func (Reset) Name() string             { return "Reset" }
func (TestConnection) Name() string    { return "TestConnection" }
func (ConnectionChecked) Name() string { return "ConnectionChecked" }
func (CheckStatus) Name() string       { return "CheckStatus" }
func (StatusChecked) Name() string     { return "StatusChecked" }
func (StatusCheckFailed) Name() string { return "StatusCheckFailed" }
func (SignContract) Name() string      { return "SignContract" }
func (ContractGenerated) Name() string { return "ContractGenerated" }
func (ContractFailed) Name() string    { return "ContractFailed" }

// Effect is remote work requested by a transition. The Store runs each
// effect in its own goroutine and feeds the result back as a command.
type Effect interface {
	effect()
}

type EffectProcessDocument struct {
	Session  uint64
	Category DocumentCategory
	Attempt  uint64
	File     FileRef
	Content  []byte
}

type EffectSubmit struct {
	Session uint64
	Request SubmissionRequest
}

type EffectCheckStatus struct {
	Session       uint64
	ApplicationID string
}

type EffectGenerateContract struct {
	Session       uint64
	ApplicationID string
	Payload       ContractPayload
}

type EffectTestConnection struct {
	Session uint64
}

func (EffectProcessDocument) effect()  {}
func (EffectSubmit) effect()           {}
func (EffectCheckStatus) effect()      {}
func (EffectGenerateContract) effect() {}
func (EffectTestConnection) effect()   {}

// Outcome is the result of applying one command.
type Outcome struct {
	Accepted bool
	Err      error
	Effects  []Effect
}
