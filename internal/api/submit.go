package api

import (
	"context"
	"encoding/json"
	"fmt"

	"merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/models"
	assessmerchantrisk "merchant-onboarding/internal/workers/application/assess-merchant-risk"
	storeapplicationrecord "merchant-onboarding/internal/workers/application/store-application-record"
	senddecisionnotification "merchant-onboarding/internal/workers/communication/send-decision-notification"
)

// Submitter turns a submission into a stored decision.
type Submitter interface {
	Submit(ctx context.Context, req models.SubmitApplicationRequest) (models.SubmitApplicationResponse, error)
}

type RiskAssessor interface {
	Execute(ctx context.Context, input *assessmerchantrisk.Input) (*assessmerchantrisk.Output, error)
}

type RecordStore interface {
	Execute(ctx context.Context, input *storeapplicationrecord.Input) (*storeapplicationrecord.Output, error)
}

type Notifier interface {
	Execute(ctx context.Context, input *senddecisionnotification.Input) (*senddecisionnotification.Output, error)
}

// InlineSubmitter runs assess, store and notify in the request goroutine.
type InlineSubmitter struct {
	assess RiskAssessor
	store  RecordStore
	notify Notifier
	logger logger.Logger
}

func NewInlineSubmitter(assess RiskAssessor, store RecordStore, notify Notifier, log logger.Logger) *InlineSubmitter {
	return &InlineSubmitter{
		assess: assess,
		store:  store,
		notify: notify,
		logger: log.WithFields(map[string]interface{}{"submissionMode": "inline"}),
	}
}

func (s *InlineSubmitter) Submit(ctx context.Context, req models.SubmitApplicationRequest) (models.SubmitApplicationResponse, error) {
	decision, err := s.assess.Execute(ctx, &assessmerchantrisk.Input{
		PersonalData:       req.PersonalData,
		BusinessData:       req.BusinessData,
		ProcessedDocuments: req.ProcessedDocuments,
	})
	if err != nil {
		return models.SubmitApplicationResponse{}, err
	}

	stored, err := s.store.Execute(ctx, &storeapplicationrecord.Input{
		ApplicationID:      decision.ApplicationID,
		PersonalData:       req.PersonalData,
		BusinessData:       req.BusinessData,
		ProcessedDocuments: req.ProcessedDocuments,
		ApprovalStatus:     decision.ApprovalStatus,
		RiskScore:          decision.RiskScore,
		RiskLevel:          decision.RiskLevel,
		Terms:              decision.Terms,
		ProcessingTime:     decision.ProcessingTime,
	})
	if err != nil {
		return models.SubmitApplicationResponse{}, err
	}

	if s.notify != nil {
		if _, err := s.notify.Execute(ctx, &senddecisionnotification.Input{
			ApplicationID:  decision.ApplicationID,
			ApprovalStatus: decision.ApprovalStatus,
			RiskScore:      decision.RiskScore,
			RiskLevel:      decision.RiskLevel,
			Terms:          decision.Terms,
			PersonalData:   req.PersonalData,
			BusinessData:   req.BusinessData,
		}); err != nil {
			s.logger.Warn("Decision notification skipped", map[string]interface{}{
				"applicationId": decision.ApplicationID,
				"error":         err.Error(),
			})
		}
	}

	return models.SubmitApplicationResponse{
		Status:          "success",
		ApplicationID:   decision.ApplicationID,
		ApprovalStatus:  decision.ApprovalStatus,
		RiskScore:       decision.RiskScore,
		RiskLevel:       decision.RiskLevel,
		Terms:           decision.Terms,
		ProcessingTime:  decision.ProcessingTime,
		Message:         decision.Message,
		SavedToDatabase: stored.SavedToDatabase,
		StorageMode:     stored.StorageMode,
	}, nil
}

// ProcessRunner is satisfied by *camunda.Client.
type ProcessRunner interface {
	RunProcess(ctx context.Context, processID string, variables interface{}) (map[string]interface{}, error)
}

// ProcessSubmitter starts one BPMN process instance per submission and waits
// for its result. The job workers do the actual work.
type ProcessSubmitter struct {
	runner    ProcessRunner
	processID string
	logger    logger.Logger
}

func NewProcessSubmitter(runner ProcessRunner, processID string, log logger.Logger) *ProcessSubmitter {
	return &ProcessSubmitter{
		runner:    runner,
		processID: processID,
		logger:    log.WithFields(map[string]interface{}{"submissionMode": "process", "processId": processID}),
	}
}

// processResult is the union of the assess and store worker outputs, as left
// in the process variables.
type processResult struct {
	assessmerchantrisk.Output
	SavedToDatabase bool   `json:"savedToDatabase"`
	StorageMode     string `json:"storageMode"`
}

func (s *ProcessSubmitter) Submit(ctx context.Context, req models.SubmitApplicationRequest) (models.SubmitApplicationResponse, error) {
	vars, err := s.runner.RunProcess(ctx, s.processID, map[string]interface{}{
		"personalData":       req.PersonalData,
		"businessData":       req.BusinessData,
		"processedDocuments": req.ProcessedDocuments,
	})
	if err != nil {
		return models.SubmitApplicationResponse{}, err
	}

	if code, ok := vars["errorCode"].(string); ok && code != "" {
		msg, _ := vars["errorMessage"].(string)
		return models.SubmitApplicationResponse{}, errors.NewRiskAssessmentFailedError(fmt.Errorf("%s: %s", code, msg))
	}

	raw, err := json.Marshal(vars)
	if err != nil {
		return models.SubmitApplicationResponse{}, errors.NewRiskAssessmentFailedError(err)
	}
	var out processResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.SubmitApplicationResponse{}, errors.NewRiskAssessmentFailedError(err)
	}
	if out.ApplicationID == "" || out.ApprovalStatus == "" {
		return models.SubmitApplicationResponse{}, errors.NewRiskAssessmentFailedError(
			fmt.Errorf("process %s finished without a decision", s.processID))
	}

	s.logger.Debug("Process instance completed", map[string]interface{}{
		"applicationId": out.ApplicationID,
	})

	return models.SubmitApplicationResponse{
		Status:          "success",
		ApplicationID:   out.ApplicationID,
		ApprovalStatus:  out.ApprovalStatus,
		RiskScore:       out.RiskScore,
		RiskLevel:       out.RiskLevel,
		Terms:           out.Terms,
		ProcessingTime:  out.ProcessingTime,
		Message:         out.Message,
		SavedToDatabase: out.SavedToDatabase,
		StorageMode:     out.StorageMode,
	}, nil
}
