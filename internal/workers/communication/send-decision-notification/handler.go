package senddecisionnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/common/metrics"
	"merchant-onboarding/internal/common/validation"
	"merchant-onboarding/internal/models"
)

const (
	TaskType = "send-decision-notification"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Handler struct {
	config    *Config
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
	templates map[string]emailTemplate
}

// NewHandler wires the delivery clients. A nil client disables its channel.
func NewHandler(config *Config, sesClient SESService, snsClient SNSService, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		sesClient: sesClient,
		snsClient: snsClient,
		templates: decisionTemplates(),
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
		h.failJob(client, job, string(errors.ErrCodeApplicationValidation), err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// execute only fails on malformed input. Delivery failures are reported per
// channel in the output and never fail the job.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" || input.ApprovalStatus == "" {
		return nil, errors.NewApplicationValidationError("applicationId and approvalStatus are required")
	}

	data := templateData(input)
	out := &Output{
		NotificationID: uuid.New().String(),
		EmailStatus:    StatusDisabled,
		EventStatus:    StatusDisabled,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}

	if h.config.EmailEnabled && h.sesClient != nil {
		out.EmailStatus = h.deliverEmail(ctx, input, data)
	}
	if h.config.EventsEnabled && h.snsClient != nil {
		out.EventStatus = h.publishEvent(ctx, input, out.NotificationID)
	}

	h.logger.Info("decision notification processed", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"emailStatus":   out.EmailStatus,
		"eventStatus":   out.EventStatus,
	})
	return out, nil
}

func (h *Handler) deliverEmail(ctx context.Context, input *Input, data map[string]interface{}) string {
	to := strings.TrimSpace(models.StringField(input.PersonalData, "email"))
	if to == "" {
		return StatusSkipped
	}
	if !validation.ValidateEmail(to) {
		h.logger.Warn("applicant email is malformed", map[string]interface{}{
			"applicationId": input.ApplicationID,
		})
		return StatusSkipped
	}
	tmpl, ok := h.templates[input.ApprovalStatus]
	if !ok {
		h.logger.Warn("no template for approval status", map[string]interface{}{
			"approvalStatus": input.ApprovalStatus,
		})
		return StatusSkipped
	}

	subject := renderTemplate(tmpl.subject, data)
	body := renderTemplate(tmpl.body, data)
	if err := h.sendEmail(ctx, to, subject, body); err != nil {
		h.logger.Error("email send failed", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"error":         errors.NewNotificationSendFailedError("email", err).Details,
		})
		return StatusFailed
	}
	return StatusSent
}

func (h *Handler) publishEvent(ctx context.Context, input *Input, notificationID string) string {
	if h.config.TopicARN == "" {
		return StatusSkipped
	}

	event := map[string]interface{}{
		"notificationId": notificationID,
		"applicationId":  input.ApplicationID,
		"approvalStatus": input.ApprovalStatus,
		"riskScore":      input.RiskScore,
		"riskLevel":      input.RiskLevel,
		"businessName":   models.StringField(input.BusinessData, "businessName"),
	}
	if input.Terms != nil {
		event["rate"] = input.Terms.Rate
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return StatusFailed
	}

	if err := h.sendEvent(ctx, string(payload), input.ApprovalStatus); err != nil {
		h.logger.Error("event publish failed", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"error":         errors.NewNotificationSendFailedError("sns", err).Details,
		})
		return StatusFailed
	}
	return StatusSent
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendEvent(ctx context.Context, message, status string) error {
	_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(h.config.TopicARN),
		Message:  aws.String(message),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"eventType":      {DataType: aws.String("String"), StringValue: aws.String(EventType)},
			"approvalStatus": {DataType: aws.String("String"), StringValue: aws.String(status)},
		},
	})
	return err
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
	_, err = cmd.Send(context.Background())
	if err != nil {
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
