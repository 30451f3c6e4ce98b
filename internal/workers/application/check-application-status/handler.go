package checkapplicationstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/common/metrics"
	"merchant-onboarding/internal/models"
)

const TaskType = "check-application-status"

// Lookup is satisfied by *applications.Repository.
type Lookup interface {
	Get(ctx context.Context, applicationID string) (models.ApplicationRecord, string, error)
}

type Handler struct {
	config   *Config
	lookup   Lookup
	logger   logger.Logger
	failures *errors.ErrorHandler
}

func NewHandler(cfg *Config, lookup Lookup, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   cfg,
		lookup:   lookup,
		logger:   log,
		failures: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewApplicationValidationError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := "INTERNAL_ERROR"
	if stdErr, ok := errors.AsStandardError(err); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.failures.HandleJobError(ctx, client, job, err)
}

// Execute reports the decision stored for an application. Unknown ids yield
// APPLICATION_NOT_FOUND.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	id := strings.TrimSpace(input.ApplicationID)
	if id == "" {
		return nil, errors.NewApplicationValidationError("applicationId is required")
	}

	rec, source, err := h.lookup.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("application status resolved", map[string]interface{}{
		"applicationId": id,
		"source":        source,
	})

	return &Output{
		ApplicationID:      rec.ApplicationID,
		Status:             rec.ApprovalStatus,
		RiskScore:          rec.RiskScore,
		RiskLevel:          rec.RiskLevel,
		Terms:              rec.Terms,
		CreatedAt:          rec.CreatedAt.UTC().Format(time.RFC3339),
		ProcessingComplete: true,
		Source:             source,
	}, nil
}
