package storeapplicationrecord

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"merchant-onboarding/internal/applications"
	"merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/common/metrics"
	"merchant-onboarding/internal/models"
)

const TaskType = "store-application-record"

// Repository is satisfied by *applications.Repository.
type Repository interface {
	Save(ctx context.Context, rec models.ApplicationRecord) applications.SaveResult
}

type Handler struct {
	config *Config
	repo   Repository
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config *Config, repo Repository, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		repo:   repo,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:    time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		code := string(errors.ErrCodeApplicationValidation)
		if stdErr, ok := errors.AsStandardError(err); ok {
			code = string(stdErr.Code)
		}
		h.failJob(client, job, code, err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// execute never fails on storage problems: the repository falls back to
// memory and the output reports where the record went.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, errors.NewApplicationValidationError("applicationId is required")
	}
	if input.ApprovalStatus == "" {
		return nil, errors.NewApplicationValidationError("approvalStatus is required")
	}

	now := h.now().UTC()
	result := h.repo.Save(ctx, models.ApplicationRecord{
		ApplicationID:      input.ApplicationID,
		PersonalData:       input.PersonalData,
		BusinessData:       input.BusinessData,
		ProcessedDocuments: input.ProcessedDocuments,
		ApprovalStatus:     input.ApprovalStatus,
		RiskScore:          input.RiskScore,
		RiskLevel:          input.RiskLevel,
		Terms:              input.Terms,
		ProcessingTime:     input.ProcessingTime,
		CreatedAt:          now,
	})

	return &Output{
		SavedToDatabase: result.SavedToDatabase,
		StorageMode:     result.StorageMode,
		StoredAt:        now.Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
