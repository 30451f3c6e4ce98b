package assessmerchantrisk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"merchant-onboarding/internal/common/config"
	"merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/common/metrics"
	"merchant-onboarding/internal/common/observability"
	"merchant-onboarding/internal/models"
)

const TaskType = "assess-merchant-risk"

type Handler struct {
	config *Config
	logger logger.Logger
	obs    *observability.Observability
	now    func() time.Time
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Logger        logger.Logger
	Observability *observability.Observability
	Clock         func() time.Time
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Handler{
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		obs:    opts.Observability,
		now:    clock,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing risk assessment", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewApplicationValidationError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute scores the application and, when approved, prices it. The
// application id is assigned here.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.BusinessData == nil {
		return nil, errors.NewApplicationValidationError("business_data is required")
	}
	if len(input.ProcessedDocuments) == 0 {
		return nil, errors.NewApplicationValidationError("at least one processed document is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewRiskAssessmentFailedError(err)
	}

	score := Score(input.BusinessData, input.ProcessedDocuments)
	status, level := Decide(score, h.config.ApprovalScore)

	var terms *models.Terms
	if status == models.ApprovalApproved {
		terms = GenerateTerms(input.BusinessData, score)
	}

	out := &Output{
		ApplicationID:  h.newApplicationID(),
		ApprovalStatus: status,
		RiskScore:      score,
		RiskLevel:      level,
		Terms:          terms,
		ProcessingTime: h.config.ProcessingTime,
		Message:        "Application " + strings.ToLower(status),
	}

	h.obs.RecordDecision(ctx, status, level)
	h.logger.Info("Risk assessment complete", map[string]interface{}{
		"applicationId":  out.ApplicationID,
		"riskScore":      score,
		"riskLevel":      level,
		"approvalStatus": status,
	})
	return out, nil
}

// newApplicationID returns APP-<yyyymmdd>-<8 upper-case hex chars>.
func (h *Handler) newApplicationID() string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("APP-%s-%s", h.now().Format("20060102"), suffix)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr, ok := errors.AsStandardError(err)
	if !ok {
		stdErr = errors.NewRiskAssessmentFailedError(err)
	}
	bpmnErr := errors.ConvertToBPMNError(stdErr)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, bpmnErr.Code).Inc()

	h.logger.Error("Risk assessment job failed", map[string]interface{}{
		"jobKey":       job.GetKey(),
		"errorCode":    bpmnErr.Code,
		"errorMessage": bpmnErr.Message,
		"retries":      bpmnErr.Retries,
	})

	if bpmnErr.Retries > 0 {
		_, sendErr := client.NewFailJobCommand().
			JobKey(job.GetKey()).
			Retries(int32(bpmnErr.Retries)).
			ErrorMessage(fmt.Sprintf("[%s] %s", bpmnErr.Code, bpmnErr.Message)).
			Send(ctx)
		if sendErr != nil {
			h.logger.Error("Failed to fail job", map[string]interface{}{"error": sendErr.Error()})
		}
		return
	}

	_, sendErr := client.NewThrowErrorCommand().
		JobKey(job.GetKey()).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message).
		Send(ctx)
	if sendErr != nil {
		h.logger.Error("Failed to throw BPMN error", map[string]interface{}{"error": sendErr.Error()})
	}
}
