package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"merchant-onboarding/internal/onboarding"
)

// Session is the subset of *onboarding.Store a script drives.
type Session interface {
	AdvanceStep(ctx context.Context, consents map[string]bool) error
	RetreatStep(ctx context.Context) error
	SetField(ctx context.Context, section onboarding.Section, key string, value interface{}) error
	BeginUpload(ctx context.Context, category onboarding.DocumentCategory, file onboarding.FileRef, content []byte) error
	Submit(ctx context.Context) error
	TestConnection(ctx context.Context) error
	CheckStatus(ctx context.Context) error
	SignContract(ctx context.Context, signature string, agreements map[string]bool) error
	DownloadContract(ctx context.Context) (io.ReadCloser, string, error)
	Reset(ctx context.Context) error
	Snapshot(ctx context.Context) (onboarding.Application, error)
	Wait(ctx context.Context) error
}

type runner struct {
	session Session
	out     io.Writer
	// baseDir resolves relative file and output paths.
	baseDir string
}

// run executes every step in order. A failing step stops the run unless it
// is marked expect_error.
func (r *runner) run(ctx context.Context, script *Script) error {
	for i, st := range script.Steps {
		err := r.step(ctx, st)
		switch {
		case err != nil && st.ExpectError:
			fmt.Fprintf(r.out, "[%d] %s: rejected as expected: %v\n", i+1, st.Action, err)
		case err != nil:
			return fmt.Errorf("step %d (%s): %w", i+1, st.Action, err)
		case st.ExpectError:
			return fmt.Errorf("step %d (%s): expected an error", i+1, st.Action)
		default:
			if err := r.printScreen(ctx, i+1, st.Action); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *runner) step(ctx context.Context, st Step) error {
	s := r.session
	switch st.Action {
	case ActionSetField:
		values := st.values()
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := s.SetField(ctx, onboarding.Section(st.Section), k, values[k]); err != nil {
				return err
			}
		}
		return nil
	case ActionAdvance:
		return s.AdvanceStep(ctx, st.Consents)
	case ActionRetreat:
		return s.RetreatStep(ctx)
	case ActionUpload:
		content, err := os.ReadFile(r.path(st.File))
		if err != nil {
			return fmt.Errorf("read upload: %w", err)
		}
		ref := onboarding.FileRef{Name: filepath.Base(st.File), Size: int64(len(content))}
		return s.BeginUpload(ctx, onboarding.DocumentCategory(st.Category), ref, content)
	case ActionSubmit:
		return s.Submit(ctx)
	case ActionWait:
		return s.Wait(ctx)
	case ActionCheckStatus:
		return s.CheckStatus(ctx)
	case ActionSignContract:
		return s.SignContract(ctx, st.Signature, st.Agreements)
	case ActionDownload:
		return r.download(ctx, st.Output)
	case ActionReset:
		return s.Reset(ctx)
	case ActionTest:
		return s.TestConnection(ctx)
	case ActionSnapshot:
		return r.snapshot(ctx)
	}
	return fmt.Errorf("unknown action %q", st.Action)
}

func (r *runner) path(p string) string {
	if filepath.IsAbs(p) || r.baseDir == "" {
		return p
	}
	return filepath.Join(r.baseDir, p)
}

func (r *runner) download(ctx context.Context, output string) error {
	rc, filename, err := r.session.DownloadContract(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	if output == "" {
		output = filename
	}
	f, err := os.Create(r.path(output))
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	n, err := io.Copy(f, rc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	fmt.Fprintf(r.out, "    saved %s (%d bytes)\n", output, n)
	return nil
}

func (r *runner) printScreen(ctx context.Context, n int, action string) error {
	app, err := r.session.Snapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "[%d] %s -> %s\n", n, action, onboarding.CurrentScreen(app))
	return nil
}

// sessionReport is the printed form of a snapshot.
type sessionReport struct {
	Session    uint64                    `yaml:"session"`
	Screen     string                    `yaml:"screen"`
	Connected  bool                      `yaml:"backend_connected"`
	Step       string                    `yaml:"step"`
	Documents  map[string]string         `yaml:"documents,omitempty"`
	Processing onboarding.ProcessingView `yaml:"processing"`
	Results    *onboarding.ResultsView   `yaml:"results,omitempty"`
	Contract   *onboarding.ContractView  `yaml:"contract,omitempty"`
	Errors     map[string]string         `yaml:"errors,omitempty"`
}

func buildReport(app onboarding.Application) sessionReport {
	rep := sessionReport{
		Session:    app.Session,
		Screen:     onboarding.CurrentScreen(app),
		Connected:  app.BackendConnected,
		Step:       app.CurrentStep.String(),
		Processing: onboarding.ProjectProcessing(app),
	}
	if len(app.Documents) > 0 {
		rep.Documents = make(map[string]string, len(app.Documents))
		for cat, rec := range app.Documents {
			rep.Documents[string(cat)] = string(rec.Status)
		}
	}
	if app.Submission.State == onboarding.Submitted {
		results := onboarding.ProjectResults(app)
		rep.Results = &results
	}
	if app.Contract.Status != onboarding.ContractStatusNone {
		contract := onboarding.ProjectContract(app)
		rep.Contract = &contract
	}

	errs := map[string]string{}
	if app.ConnectionError != "" {
		errs["connection"] = app.ConnectionError
	}
	if app.Submission.Err != "" {
		errs["submission"] = app.Submission.Err
	}
	if app.StatusCheck.Err != "" {
		errs["status"] = app.StatusCheck.Err
	}
	if app.Contract.Err != "" {
		errs["contract"] = app.Contract.Err
	}
	for cat, rec := range app.Documents {
		if rec.Err != "" {
			errs[string(cat)] = rec.Err
		}
	}
	if len(errs) > 0 {
		rep.Errors = errs
	}
	return rep
}

func (r *runner) snapshot(ctx context.Context) error {
	app, err := r.session.Snapshot(ctx)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(buildReport(app)); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}
