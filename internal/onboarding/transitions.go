package onboarding

import (
	"strings"

	"merchant-onboarding/internal/models"
)

// Apply is the transition function of the workflow. It never mutates app;
// a rejected or stale command returns app unchanged.
func Apply(app Application, cmd Command, policy FencingPolicy) (Application, Outcome) {
	next := app.Clone()
	var (
		effects []Effect
		err     error
	)

	switch c := cmd.(type) {
	case AdvanceStep:
		effects, err = advance(&next, c)
	case RetreatStep:
		err = retreat(&next)
	case SetField:
		err = setField(&next, c)
	case BeginUpload:
		effects, err = beginUpload(&next, c)
	case CompleteUpload:
		err = completeUpload(&next, c, policy)
	case FailUpload:
		err = failUpload(&next, c, policy)
	case Submit:
		effects, err = submit(&next, c)
	case SubmitSucceeded:
		err = submitSucceeded(&next, c)
	case SubmitFailed:
		err = submitFailed(&next, c)
	case Reset:
		next = newSession(app.Session + 1)
		next.BackendConnected = app.BackendConnected
		next.ConnectionError = app.ConnectionError
		effects = []Effect{EffectTestConnection{Session: next.Session}}
	case TestConnection:
		effects = []Effect{EffectTestConnection{Session: next.Session}}
	case ConnectionChecked:
		err = connectionChecked(&next, c)
	case CheckStatus:
		effects, err = checkStatus(&next)
	case StatusChecked:
		err = statusChecked(&next, c)
	case StatusCheckFailed:
		err = statusCheckFailed(&next, c)
	case SignContract:
		effects, err = signContract(&next, c)
	case ContractGenerated:
		err = contractGenerated(&next, c)
	case ContractFailed:
		err = contractFailed(&next, c)
	default:
		err = invalidCommand("unsupported command %T", cmd)
	}

	if err != nil {
		return app, Outcome{Err: err}
	}
	return next, Outcome{Accepted: true, Effects: effects}
}

func sessionMatches(app *Application, session uint64) bool {
	return session == 0 || session == app.Session
}

func advance(app *Application, c AdvanceStep) ([]Effect, error) {
	if err := Guard(*app, app.CurrentStep, c.Consents); err != nil {
		return nil, err
	}
	if app.CurrentStep == StageReview {
		return submit(app, Submit{})
	}
	app.CurrentStep++
	return nil, nil
}

func retreat(app *Application) error {
	if app.CurrentStep == StagePersonal {
		return guardRejected(app.CurrentStep.String(), ReasonFirstStage)
	}
	app.CurrentStep--
	return nil
}

func setField(app *Application, c SetField) error {
	if strings.TrimSpace(c.Key) == "" {
		return invalidCommand("field key is empty")
	}
	switch c.Value.(type) {
	case string, int, int64, float64:
	default:
		return invalidCommand("field %s must be a string or number, got %T", c.Key, c.Value)
	}

	switch c.Section {
	case SectionPersonal:
		app.Personal[c.Key] = c.Value
	case SectionBusiness:
		app.Business[c.Key] = c.Value
	default:
		return invalidCommand("unknown section %q", c.Section)
	}
	return nil
}

func beginUpload(app *Application, c BeginUpload) ([]Effect, error) {
	if !c.Category.Valid() {
		return nil, invalidCommand("unknown document category %q", c.Category)
	}
	if c.File.Name == "" {
		return nil, invalidCommand("file name is empty")
	}

	app.attemptSeq++
	Tracker{}.Begin(app.Documents, c.Category, c.File, app.attemptSeq)

	return []Effect{EffectProcessDocument{
		Session:  app.Session,
		Category: c.Category,
		Attempt:  app.attemptSeq,
		File:     c.File,
		Content:  c.Content,
	}}, nil
}

func completeUpload(app *Application, c CompleteUpload, policy FencingPolicy) error {
	if !sessionMatches(app, c.Session) {
		return staleCompletion(c.Name(), "session %d is not current session %d", c.Session, app.Session)
	}
	if err := (Tracker{Policy: policy}).Complete(app.Documents, c.Category, c.Attempt, c.Extraction); err != nil {
		return err
	}
	app.LastProcessingResult = &ProcessingResult{Category: c.Category, Extraction: c.Extraction.clone()}
	return nil
}

func failUpload(app *Application, c FailUpload, policy FencingPolicy) error {
	if !sessionMatches(app, c.Session) {
		return staleCompletion(c.Name(), "session %d is not current session %d", c.Session, app.Session)
	}
	return (Tracker{Policy: policy}).Fail(app.Documents, c.Category, c.Attempt, c.Err)
}

func submit(app *Application, c Submit) ([]Effect, error) {
	switch app.Submission.State {
	case Submitting:
		return nil, guardRejected(StageReview.String(), ReasonSubmissionInProgress)
	case Submitted:
		return nil, guardRejected(StageReview.String(), ReasonAlreadySubmitted)
	}

	req := SubmissionRequest{
		Personal:  c.Personal,
		Business:  c.Business,
		Documents: c.Documents,
	}
	if req.Personal == nil {
		req.Personal = app.Personal.clone()
	}
	if req.Business == nil {
		req.Business = app.Business.clone()
	}
	if req.Documents == nil {
		req.Documents = ProcessedDocuments(*app)
	}

	app.Submission = Submission{State: Submitting}
	return []Effect{EffectSubmit{Session: app.Session, Request: req}}, nil
}

func submitSucceeded(app *Application, c SubmitSucceeded) error {
	if !sessionMatches(app, c.Session) {
		return staleCompletion(c.Name(), "session %d is not current session %d", c.Session, app.Session)
	}
	if app.Submission.State != Submitting {
		return staleCompletion(c.Name(), "no submission in flight (state %s)", app.Submission.State)
	}
	if c.Decision.ApplicationID == "" {
		app.Submission = Submission{State: SubmissionFailed, Err: "decision has no application id"}
		return nil
	}

	d := c.Decision
	app.Submission = Submission{State: Submitted, Decision: d.clone()}
	app.ApplicationID = d.ApplicationID
	app.StorageMode = d.StorageMode
	app.SavedToDatabase = d.SavedToDatabase
	return nil
}

func submitFailed(app *Application, c SubmitFailed) error {
	if !sessionMatches(app, c.Session) {
		return staleCompletion(c.Name(), "session %d is not current session %d", c.Session, app.Session)
	}
	if app.Submission.State != Submitting {
		return staleCompletion(c.Name(), "no submission in flight (state %s)", app.Submission.State)
	}
	app.Submission = Submission{State: SubmissionFailed, Err: c.Err}
	return nil
}

func connectionChecked(app *Application, c ConnectionChecked) error {
	if !sessionMatches(app, c.Session) {
		return staleCompletion(c.Name(), "session %d is not current session %d", c.Session, app.Session)
	}
	app.BackendConnected = c.Err == ""
	app.ConnectionError = c.Err
	return nil
}

func checkStatus(app *Application) ([]Effect, error) {
	if app.ApplicationID == "" {
		return nil, guardRejected("Results", ReasonNoApplication)
	}
	if app.StatusCheck.InFlight {
		return nil, guardRejected("Results", ReasonStatusCheckInFlight)
	}
	app.StatusCheck = StatusCheck{InFlight: true, Source: app.StatusCheck.Source}
	return []Effect{EffectCheckStatus{Session: app.Session, ApplicationID: app.ApplicationID}}, nil
}

func statusChecked(app *Application, c StatusChecked) error {
	if !sessionMatches(app, c.Session) {
		return staleCompletion(c.Name(), "session %d is not current session %d", c.Session, app.Session)
	}
	if !app.StatusCheck.InFlight {
		return staleCompletion(c.Name(), "no status check in flight")
	}

	r := c.Report
	app.StatusCheck = StatusCheck{Source: r.Source}
	if d := app.Submission.Decision; d != nil && app.Submission.State == Submitted {
		if r.Status != "" {
			d.ApprovalStatus = r.Status
		}
		d.RiskScore = r.RiskScore
		if r.RiskLevel != "" {
			d.RiskLevel = r.RiskLevel
		}
		if r.Terms != nil {
			t := *r.Terms
			d.Terms = &t
		}
	}
	return nil
}

func statusCheckFailed(app *Application, c StatusCheckFailed) error {
	if !sessionMatches(app, c.Session) {
		return staleCompletion(c.Name(), "session %d is not current session %d", c.Session, app.Session)
	}
	if !app.StatusCheck.InFlight {
		return staleCompletion(c.Name(), "no status check in flight")
	}
	app.StatusCheck = StatusCheck{Err: c.Err, Source: app.StatusCheck.Source}
	return nil
}

func signContract(app *Application, c SignContract) ([]Effect, error) {
	const stage = "Contract"

	d := app.Decision()
	if d == nil {
		return nil, guardRejected(stage, ReasonNoApplication)
	}
	if d.ApprovalStatus != models.ApprovalApproved {
		return nil, guardRejected(stage, ReasonNotApproved)
	}
	switch app.Contract.Status {
	case ContractStatusGenerating:
		return nil, guardRejected(stage, ReasonContractInProgress)
	case ContractStatusGenerated:
		return nil, guardRejected(stage, ReasonContractExists)
	}
	signature := strings.TrimSpace(c.Signature)
	if len([]rune(signature)) < 3 {
		return nil, guardRejected(stage, ReasonSignatureTooShort)
	}
	for _, a := range RequiredAgreements {
		if !c.Agreements[a] {
			return nil, guardRejected(stage, ReasonAgreementsRequired)
		}
	}

	app.Contract = Contract{
		Status:     ContractStatusGenerating,
		Signature:  signature,
		Agreements: cloneBools(c.Agreements),
	}

	var terms *Terms
	if d.Terms != nil {
		t := *d.Terms
		terms = &t
	}
	return []Effect{EffectGenerateContract{
		Session:       app.Session,
		ApplicationID: app.ApplicationID,
		Payload: ContractPayload{
			Personal:   app.Personal.clone(),
			Business:   app.Business.clone(),
			Terms:      terms,
			Documents:  ProcessedDocuments(*app),
			Signature:  signature,
			Agreements: cloneBools(c.Agreements),
		},
	}}, nil
}

func contractGenerated(app *Application, c ContractGenerated) error {
	if !sessionMatches(app, c.Session) {
		return staleCompletion(c.Name(), "session %d is not current session %d", c.Session, app.Session)
	}
	if app.Contract.Status != ContractStatusGenerating {
		return staleCompletion(c.Name(), "no contract generation in flight")
	}
	app.Contract.Status = ContractStatusGenerated
	app.Contract.Filename = c.File.Filename
	app.Contract.DownloadURL = c.File.DownloadURL
	app.Contract.Err = ""
	app.Contract.GeneratedAt = c.At
	return nil
}

func contractFailed(app *Application, c ContractFailed) error {
	if !sessionMatches(app, c.Session) {
		return staleCompletion(c.Name(), "session %d is not current session %d", c.Session, app.Session)
	}
	if app.Contract.Status != ContractStatusGenerating {
		return staleCompletion(c.Name(), "no contract generation in flight")
	}
	app.Contract.Status = ContractStatusFailed
	app.Contract.Err = c.Err
	return nil
}
