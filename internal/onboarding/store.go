package onboarding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	apperrors "merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/common/metrics"
)

const (
	defaultOperationTimeout = 30 * time.Second
	defaultCommandBuffer    = 64
)

// Store owns the Application. A single goroutine applies every command in
// arrival order; remote work runs in separate goroutines and reports back
// through the same queue.
type Store struct {
	gw      Gateway
	log     logger.Logger
	policy  FencingPolicy
	timeout time.Duration
	buffer  int
	now     func() time.Time

	cmds      chan envelope
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by run
	app     Application
	pending int
	waiters []chan struct{}
}

type envelope struct {
	cmd        Command
	query      func(Application)
	wait       chan struct{}
	reply      chan Outcome
	fromEffect bool
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(log logger.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithFencingPolicy selects how concurrent re-uploads of one category resolve.
func WithFencingPolicy(p FencingPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithOperationTimeout bounds each remote call.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

func WithCommandBuffer(n int) Option {
	return func(s *Store) { s.buffer = n }
}

// WithClock overrides the time source used for decision and contract timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore starts the store goroutine with a fresh Application and probes the
// remote service once.
func NewStore(gw Gateway, opts ...Option) *Store {
	s := &Store{
		gw:      gw,
		log:     logger.NewNoOpLogger(),
		policy:  LastCompletionWins,
		timeout: defaultOperationTimeout,
		buffer:  defaultCommandBuffer,
		now:     time.Now,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		app:     NewApplication(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy == "" {
		s.policy = LastCompletionWins
	}
	if s.buffer <= 0 {
		s.buffer = defaultCommandBuffer
	}
	s.log = s.log.WithFields(map[string]interface{}{"component": "workflow-store"})
	s.cmds = make(chan envelope, s.buffer)

	s.startEffects([]Effect{EffectTestConnection{Session: s.app.Session}})
	go s.run()
	return s
}

func (s *Store) run() {
	defer close(s.done)
	for {
		select {
		case env := <-s.cmds:
			s.handle(env)
		case <-s.quit:
			return
		}
	}
}

func (s *Store) handle(env envelope) {
	switch {
	case env.query != nil:
		env.query(s.app.Clone())
		return
	case env.wait != nil:
		if s.pending == 0 {
			close(env.wait)
		} else {
			s.waiters = append(s.waiters, env.wait)
		}
		return
	}

	if env.fromEffect {
		s.pending--
		metrics.AsyncOperationsInFlight.Dec()
	}

	next, out := Apply(s.app, env.cmd, s.policy)
	s.record(env.cmd, out)
	if out.Accepted {
		s.app = next
		s.startEffects(out.Effects)
	}

	if s.pending == 0 {
		for _, w := range s.waiters {
			close(w)
		}
		s.waiters = nil
	}
	if env.reply != nil {
		env.reply <- out
	}
}

func (s *Store) record(cmd Command, out Outcome) {
	fields := map[string]interface{}{
		"command": cmd.Name(),
		"session": s.app.Session,
	}
	switch {
	case out.Accepted:
		metrics.StoreCommandsTotal.WithLabelValues(cmd.Name(), "accepted").Inc()
		s.log.Debug("Command applied", fields)
	case IsStale(out.Err):
		metrics.StoreCommandsTotal.WithLabelValues(cmd.Name(), "stale").Inc()
		metrics.StaleCompletionsTotal.WithLabelValues(cmd.Name()).Inc()
		fields["error"] = out.Err.Error()
		s.log.Warn("Discarding stale completion", fields)
	case IsGuardRejected(out.Err):
		metrics.StoreCommandsTotal.WithLabelValues(cmd.Name(), "rejected").Inc()
		fields["reason"] = RejectionReason(out.Err)
		s.log.Info("Command rejected by guard", fields)
	default:
		metrics.StoreCommandsTotal.WithLabelValues(cmd.Name(), "invalid").Inc()
		fields["error"] = out.Err.Error()
		s.log.Warn("Invalid command", fields)
	}
}

func (s *Store) startEffects(effects []Effect) {
	for _, eff := range effects {
		s.pending++
		metrics.AsyncOperationsInFlight.Inc()
		go s.execute(eff)
	}
}

// execute performs one remote call and enqueues its completion. A transport
// failure also flips the connectivity indicator.
func (s *Store) execute(eff Effect) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var (
		cmd     Command
		session uint64
		callErr error
	)

	switch e := eff.(type) {
	case EffectProcessDocument:
		session = e.Session
		ext, err := s.gw.ProcessDocument(ctx, e.Category, e.File, e.Content)
		if err != nil {
			callErr = err
			cmd = FailUpload{Category: e.Category, Err: errorMessage(err), Session: e.Session, Attempt: e.Attempt}
		} else {
			cmd = CompleteUpload{Category: e.Category, Extraction: ext, Session: e.Session, Attempt: e.Attempt}
		}

	case EffectSubmit:
		session = e.Session
		d, err := s.gw.SubmitApplication(ctx, e.Request)
		if err != nil {
			callErr = err
			cmd = SubmitFailed{Err: errorMessage(err), Session: e.Session}
		} else {
			if d.DecidedAt.IsZero() {
				d.DecidedAt = s.now()
			}
			cmd = SubmitSucceeded{Decision: d, Session: e.Session}
		}

	case EffectCheckStatus:
		session = e.Session
		r, err := s.gw.CheckStatus(ctx, e.ApplicationID)
		if err != nil {
			callErr = err
			cmd = StatusCheckFailed{Err: errorMessage(err), Session: e.Session}
		} else {
			cmd = StatusChecked{Report: r, Session: e.Session}
		}

	case EffectGenerateContract:
		session = e.Session
		f, err := s.gw.GenerateContract(ctx, e.ApplicationID, e.Payload)
		switch {
		case err != nil:
			callErr = err
			cmd = ContractFailed{Err: errorMessage(err), Session: e.Session}
		case !f.Success || f.Filename == "":
			msg := f.Message
			if msg == "" {
				msg = "contract generation failed"
			}
			cmd = ContractFailed{Err: msg, Session: e.Session}
		default:
			cmd = ContractGenerated{File: f, At: s.now(), Session: e.Session}
		}

	case EffectTestConnection:
		err := s.gw.TestConnection(ctx)
		msg := ""
		if err != nil {
			msg = errorMessage(err)
		}
		cmd = ConnectionChecked{Err: msg, Session: e.Session}

	default:
		s.log.Error("Unknown effect", map[string]interface{}{"effect": fmt.Sprintf("%T", eff)})
		cmd = unknownEffect{}
	}

	if callErr != nil && errors.Is(callErr, apperrors.ErrConnectionUnavailable) {
		s.post(envelope{cmd: ConnectionChecked{Err: errorMessage(callErr), Session: session}})
	}
	s.post(envelope{cmd: cmd, fromEffect: true})
}

// unknownEffect keeps the pending count balanced if an effect type is not
// handled; Apply rejects it as invalid.
type unknownEffect struct{}

func (unknownEffect) Name() string { return "UnknownEffect" }

func (s *Store) post(env envelope) {
	select {
	case s.cmds <- env:
	case <-s.quit:
	}
}

// errorMessage is the user-facing text stored on the Application.
func errorMessage(err error) string {
	if stdErr, ok := apperrors.AsStandardError(err); ok {
		if stdErr.Details != "" {
			return stdErr.Message + ": " + stdErr.Details
		}
		return stdErr.Message
	}
	return err.Error()
}

// Dispatch applies cmd and returns its outcome. The error is non-nil only when
// the store is closed or ctx ends first; rejections are reported in
// Outcome.Err.
func (s *Store) Dispatch(ctx context.Context, cmd Command) (Outcome, error) {
	if cmd == nil {
		return Outcome{}, invalidCommand("nil command")
	}
	reply := make(chan Outcome, 1)
	if err := s.enqueue(ctx, envelope{cmd: cmd, reply: reply}); err != nil {
		return Outcome{}, err
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-s.quit:
		return Outcome{}, apperrors.ErrStoreClosed
	}
}

func (s *Store) enqueue(ctx context.Context, env envelope) error {
	select {
	case <-s.quit:
		return apperrors.ErrStoreClosed
	default:
	}
	select {
	case s.cmds <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return apperrors.ErrStoreClosed
	}
}

// do dispatches cmd and folds the outcome into one error. Stale completions
// are not errors for the caller.
func (s *Store) do(ctx context.Context, cmd Command) error {
	out, err := s.Dispatch(ctx, cmd)
	if err != nil {
		return err
	}
	if out.Err != nil && !IsStale(out.Err) {
		return out.Err
	}
	return nil
}

// AdvanceStep leaves the current stage. On the review stage it submits.
func (s *Store) AdvanceStep(ctx context.Context, consents map[string]bool) error {
	return s.do(ctx, AdvanceStep{Consents: consents})
}

func (s *Store) RetreatStep(ctx context.Context) error {
	return s.do(ctx, RetreatStep{})
}

func (s *Store) SetField(ctx context.Context, section Section, key string, value interface{}) error {
	return s.do(ctx, SetField{Section: section, Key: key, Value: value})
}

// BeginUpload selects file for category and starts remote processing.
func (s *Store) BeginUpload(ctx context.Context, category DocumentCategory, file FileRef, content []byte) error {
	return s.do(ctx, BeginUpload{Category: category, File: file, Content: content})
}

// CompleteUpload records an extraction for the current attempt of category.
func (s *Store) CompleteUpload(ctx context.Context, category DocumentCategory, ext Extraction) error {
	return s.do(ctx, CompleteUpload{Category: category, Extraction: ext})
}

func (s *Store) FailUpload(ctx context.Context, category DocumentCategory, reason string) error {
	return s.do(ctx, FailUpload{Category: category, Err: reason})
}

// Submit sends the current details and processed documents for a decision.
func (s *Store) Submit(ctx context.Context) error {
	return s.do(ctx, Submit{})
}

func (s *Store) SubmitSucceeded(ctx context.Context, d Decision) error {
	return s.do(ctx, SubmitSucceeded{Decision: d})
}

func (s *Store) SubmitFailed(ctx context.Context, reason string) error {
	return s.do(ctx, SubmitFailed{Err: reason})
}

// Reset discards the session. Completions still in flight become stale.
func (s *Store) Reset(ctx context.Context) error {
	return s.do(ctx, Reset{})
}

func (s *Store) TestConnection(ctx context.Context) error {
	return s.do(ctx, TestConnection{})
}

func (s *Store) CheckStatus(ctx context.Context) error {
	return s.do(ctx, CheckStatus{})
}

func (s *Store) SignContract(ctx context.Context, signature string, agreements map[string]bool) error {
	return s.do(ctx, SignContract{Signature: signature, Agreements: agreements})
}

// DownloadContract streams the generated contract. The caller closes the reader.
func (s *Store) DownloadContract(ctx context.Context) (io.ReadCloser, string, error) {
	app, err := s.Snapshot(ctx)
	if err != nil {
		return nil, "", err
	}
	if app.Contract.Status != ContractStatusGenerated || app.Contract.Filename == "" {
		return nil, "", guardRejected("Contract", "no generated contract")
	}
	rc, err := s.gw.DownloadContract(ctx, app.Contract.Filename)
	if err != nil {
		return nil, "", err
	}
	return rc, app.Contract.Filename, nil
}

// Snapshot returns a deep copy of the current Application.
func (s *Store) Snapshot(ctx context.Context) (Application, error) {
	result := make(chan Application, 1)
	err := s.enqueue(ctx, envelope{query: func(app Application) { result <- app }})
	if err != nil {
		return Application{}, err
	}
	select {
	case app := <-result:
		return app, nil
	case <-ctx.Done():
		return Application{}, ctx.Err()
	case <-s.quit:
		return Application{}, apperrors.ErrStoreClosed
	}
}

// Wait blocks until every remote call issued so far, and any it triggered,
// has been applied.
func (s *Store) Wait(ctx context.Context) error {
	ch := make(chan struct{})
	if err := s.enqueue(ctx, envelope{wait: ch}); err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return apperrors.ErrStoreClosed
	}
}

// Close stops the store goroutine. Remote calls in flight are abandoned.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	<-s.done
	s.log.Debug("Workflow store closed", nil)
}
