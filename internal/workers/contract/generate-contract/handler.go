package generatecontract

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/common/metrics"
	"merchant-onboarding/internal/common/storage"
	"merchant-onboarding/internal/models"
)

const TaskType = "generate-contract"

const minSignatureLength = 3

// Lookup is satisfied by *applications.Repository.
type Lookup interface {
	Get(ctx context.Context, applicationID string) (models.ApplicationRecord, string, error)
}

type Handler struct {
	config   *Config
	lookup   Lookup
	store    storage.ContractStore
	logger   logger.Logger
	failures *errors.ErrorHandler
	now      func() time.Time
}

type HandlerOptions struct {
	Config *Config
	Lookup Lookup
	Store  storage.ContractStore
	Logger logger.Logger
	Clock  func() time.Time
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Lookup == nil || opts.Store == nil {
		return nil, fmt.Errorf("%s requires an application lookup and a contract store", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Handler{
		config:   cfg,
		lookup:   opts.Lookup,
		store:    opts.Store,
		logger:   log,
		failures: errors.NewErrorHandler(log),
		now:      clock,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing contract generation", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

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

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{"error": err.Error()})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := string(errors.ErrCodeContractGenerationFailed)
	if stdErr, ok := errors.AsStandardError(err); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.failures.HandleJobError(ctx, client, job, err)
}

// Execute renders and stores the agreement for an approved application.
// Terms and form data from the request win over the stored record.
func (h *Handler) Execute(ctx context.Context, req *Input) (*Output, error) {
	in := *req
	input := &in
	input.ApplicationID = strings.TrimSpace(input.ApplicationID)
	if input.ApplicationID == "" {
		return nil, errors.NewApplicationValidationError("applicationId is required")
	}
	if len(strings.TrimSpace(input.Signature)) < minSignatureLength {
		return nil, errors.NewApplicationValidationError(
			fmt.Sprintf("signature must be at least %d characters", minSignatureLength))
	}

	rec, _, err := h.lookup.Get(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if rec.ApprovalStatus != models.ApprovalApproved {
		return nil, errors.NewApplicationNotApprovedError(input.ApplicationID)
	}

	if input.PersonalData == nil {
		input.PersonalData = rec.PersonalData
	}
	if input.BusinessData == nil {
		input.BusinessData = rec.BusinessData
	}
	terms := models.Terms{}
	switch {
	case input.MerchantTerms != nil:
		terms = *input.MerchantTerms
	case rec.Terms != nil:
		terms = *rec.Terms
	}

	at := h.now()
	contractID := fmt.Sprintf("CONTRACT-%s-%s", at.Format("20060102"), strings.ToUpper(uuid.New().String()[:8]))
	filename := fmt.Sprintf("contract_%s_%s.txt", input.ApplicationID, at.Format("20060102_150405"))

	doc, err := render(newContractData(input, terms, contractID, h.config.ProviderName, at))
	if err != nil {
		return nil, errors.NewContractGenerationFailedError(err)
	}
	if err := h.store.Put(ctx, filename, doc, contentType); err != nil {
		return nil, errors.NewStorageFailedError("put_contract", err)
	}

	h.logger.Info("Contract generated", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"contractId":    contractID,
		"filename":      filename,
		"bytes":         len(doc),
		"storageMode":   h.store.Mode(),
	})

	return &Output{
		Success:       true,
		ContractID:    contractID,
		Filename:      filename,
		DownloadURL:   h.config.DownloadPath + filename,
		Message:       "Contract generated successfully",
		ApplicationID: input.ApplicationID,
		StorageMode:   h.store.Mode(),
	}, nil
}

// Open streams a stored contract. Names that are not plain file names are
// reported as missing.
func (h *Handler) Open(ctx context.Context, filename string) (io.ReadCloser, int64, error) {
	if filename == "" || path.Base(filename) != filename || strings.Contains(filename, `\`) || filename == ".." {
		return nil, 0, errors.NewContractNotFoundError(filename)
	}

	rc, size, err := h.store.Get(ctx, filename)
	if err != nil {
		if stderrors.Is(err, storage.ErrObjectNotFound) {
			return nil, 0, errors.NewContractNotFoundError(filename)
		}
		return nil, 0, errors.NewStorageFailedError("get_contract", err)
	}
	return rc, size, nil
}
