package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"merchant-onboarding/internal/onboarding"
)

// Step actions.
const (
	ActionSetField     = "set_field"
	ActionAdvance      = "advance"
	ActionRetreat      = "retreat"
	ActionUpload       = "upload"
	ActionSubmit       = "submit"
	ActionWait         = "wait"
	ActionCheckStatus  = "check_status"
	ActionSignContract = "sign_contract"
	ActionDownload     = "download"
	ActionReset        = "reset"
	ActionSnapshot     = "snapshot"
	ActionTest         = "test_connection"
)

// Script is a recorded onboarding session.
type Script struct {
	BaseURL string `yaml:"base_url"`
	Fencing string `yaml:"fencing"`
	Steps   []Step `yaml:"steps"`
}

// Step is one action with the parameters it needs. Unused fields are ignored.
type Step struct {
	Action     string                 `yaml:"action"`
	Section    string                 `yaml:"section"`
	Key        string                 `yaml:"key"`
	Value      interface{}            `yaml:"value"`
	Fields     map[string]interface{} `yaml:"fields"`
	Consents   map[string]bool        `yaml:"consents"`
	Category   string                 `yaml:"category"`
	File       string                 `yaml:"file"`
	Signature  string                 `yaml:"signature"`
	Agreements map[string]bool        `yaml:"agreements"`
	Output     string                 `yaml:"output"`
	// ExpectError lets a step fail without stopping the session.
	ExpectError bool `yaml:"expect_error"`
}

func loadScript(path string) (*Script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return parseScript(raw)
}

func parseScript(raw []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("script has no steps")
	}
	for i := range s.Steps {
		if err := s.Steps[i].validate(); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, s.Steps[i].Action, err)
		}
	}
	return &s, nil
}

func (st *Step) validate() error {
	st.Action = strings.ToLower(strings.TrimSpace(st.Action))
	switch st.Action {
	case ActionSetField:
		if st.Section != string(onboarding.SectionPersonal) && st.Section != string(onboarding.SectionBusiness) {
			return fmt.Errorf("section must be personal or business")
		}
		if st.Key == "" && len(st.Fields) == 0 {
			return fmt.Errorf("key or fields is required")
		}
		if st.Key != "" && st.Value == nil {
			return fmt.Errorf("value is required for key %s", st.Key)
		}
	case ActionUpload:
		if _, err := onboarding.ParseCategory(st.Category); err != nil {
			return err
		}
		if st.File == "" {
			return fmt.Errorf("file is required")
		}
	case ActionSignContract:
		if st.Signature == "" {
			return fmt.Errorf("signature is required")
		}
	case ActionAdvance, ActionRetreat, ActionSubmit, ActionWait, ActionCheckStatus,
		ActionDownload, ActionReset, ActionSnapshot, ActionTest:
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown action")
	}
	return nil
}

// values merges key/value over fields.
func (st Step) values() map[string]interface{} {
	out := make(map[string]interface{}, len(st.Fields)+1)
	for k, v := range st.Fields {
		out[k] = v
	}
	if st.Key != "" {
		out[st.Key] = st.Value
	}
	return out
}
