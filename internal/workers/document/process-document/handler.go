package processdocument

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/common/metrics"
	"merchant-onboarding/internal/models"
)

const TaskType = "process-document"

const (
	baseConfidence  = 0.75
	fieldConfidence = 0.05
	maxConfidence   = 0.99
)

type Handler struct {
	config   *Config
	logger   logger.Logger
	failures *errors.ErrorHandler
}

func NewHandler(cfg *Config, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:   cfg,
		logger:   log,
		failures: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
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

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInvalidDocumentError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute validates the upload and runs the extraction. Unsupported or
// oversized files are rejected with INVALID_DOCUMENT.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.validate(input); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewDocumentProcessingFailedError(input.DocumentType, err)
	}

	docType := strings.TrimSpace(input.DocumentType)
	if docType == "" {
		docType = DefaultDocumentType
	}

	start := time.Now()
	extraction := Extract(input.Content)

	h.logger.Info("document processed", map[string]interface{}{
		"documentType": docType,
		"filename":     input.Filename,
		"fileSize":     len(input.Content),
		"fields":       len(extraction.FormFields),
		"confidence":   extraction.ConfidenceScore,
		"durationMs":   time.Since(start).Milliseconds(),
	})

	return &Output{
		FileID:       uuid.New().String(),
		Status:       "success",
		DocumentType: docType,
		Filename:     input.Filename,
		FileSize:     int64(len(input.Content)),
		AIProcessing: extraction,
	}, nil
}

func (h *Handler) validate(input *Input) error {
	if input == nil || strings.TrimSpace(input.Filename) == "" {
		return errors.NewInvalidDocumentError("filename is required")
	}

	ext := strings.ToLower(filepath.Ext(input.Filename))
	allowed := false
	for _, a := range h.config.AllowedExtensions {
		if ext == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.NewInvalidDocumentError(fmt.Sprintf("Invalid file. Allowed extensions: %v", h.config.AllowedExtensions))
	}

	if size := int64(len(input.Content)); size > h.config.MaxFileBytes {
		return errors.NewInvalidDocumentError(fmt.Sprintf("File too large. Size: %d, Max: %d", size, h.config.MaxFileBytes))
	}
	return nil
}

// Extract runs the simulated analysis: every "key: value" line becomes a
// form field and each field adds to the confidence score. Empty content
// scores zero.
func Extract(content []byte) models.AIProcessing {
	fields := make(map[string]interface{})

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		fields[key] = value
	}

	confidence := 0.0
	if len(content) > 0 {
		confidence = math.Min(baseConfidence+fieldConfidence*float64(len(fields)), maxConfidence)
		confidence = math.Round(confidence*100) / 100
	}

	return models.AIProcessing{
		ConfidenceScore: confidence,
		FullTextLength:  len(content),
		FormFields:      fields,
	}
}
