// cmd/onboarding-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"merchant-onboarding/internal/api"
	"merchant-onboarding/internal/applications"
	awsclients "merchant-onboarding/internal/common/aws"
	"merchant-onboarding/internal/common/camunda"
	"merchant-onboarding/internal/common/config"
	"merchant-onboarding/internal/common/database"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/common/observability"
	"merchant-onboarding/internal/common/storage"

	amr "merchant-onboarding/internal/workers/application/assess-merchant-risk"
	cas "merchant-onboarding/internal/workers/application/check-application-status"
	sar "merchant-onboarding/internal/workers/application/store-application-record"
	sdn "merchant-onboarding/internal/workers/communication/send-decision-notification"
	gc "merchant-onboarding/internal/workers/contract/generate-contract"
	pd "merchant-onboarding/internal/workers/document/process-document"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// handlers holds one handler per task type. The API and the Zeebe workers
// share them.
type handlers struct {
	documents *pd.Handler
	assess    *amr.Handler
	store     *sar.Handler
	status    *cas.Handler
	contracts *gc.Handler
	notify    *sdn.Handler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting onboarding manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("submissionMode", cfg.Onboarding.SubmissionMode),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(cfg.App.Name, cfg.App.Version, cfg.Tracing)
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}
	defer tracing.Shutdown()

	ctx := context.Background()

	// --- Storage backends. Each one is optional; the repository falls back
	// to memory for whatever is missing. ---
	backends := database.Connect(ctx, cfg.Database, database.ConnectOptions{
		PostgresAttempts: 5,
		PostgresBackoff:  2 * time.Second,
	}, log)
	defer backends.Close()

	repoOpts := applications.Options{
		DB:       backends.DB,
		Cache:    backends.Cache,
		Index:    cfg.Database.Elasticsearch.Index,
		CacheTTL: time.Duration(cfg.Database.Redis.TTL) * time.Second,
	}
	if backends.Search != nil {
		repoOpts.Indexer = backends.Search
	}

	repo := applications.NewRepository(repoOpts, log)
	if err := repo.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("failed to ensure applications schema", zap.Error(err))
	}

	var contractStore storage.ContractStore = storage.NewMemoryStore()
	if cfg.Storage.MinIO.Enabled {
		minioStore, err := storage.NewMinIOStore(ctx, cfg.Storage.MinIO, log)
		if err != nil {
			zapLog.Warn("minio unavailable, contracts will be kept in memory", zap.Error(err))
		} else {
			contractStore = minioStore
			zapLog.Info("MinIO contract store ready", zap.String("bucket", cfg.Storage.MinIO.Bucket))
		}
	}

	h, err := buildHandlers(ctx, cfg, repo, contractStore, obs, log)
	if err != nil {
		zapLog.Fatal("failed to build handlers", zap.Error(err))
	}

	// --- Zeebe workers ---
	var (
		zeebe   *camunda.Client
		workers []*camunda.Worker
	)
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		zapLog.Info("Zeebe client connected successfully")

		if cfg.Camunda.BPMNDir != "" {
			deployed, err := zeebe.DeployDir(ctx, cfg.Camunda.BPMNDir)
			if err != nil {
				zapLog.Fatal("BPMN deployment failed", zap.Error(err))
			}
			zapLog.Info("BPMN resources deployed", zap.Strings("files", deployed))
		}

		workers = startWorkers(zeebe.GetClient(), cfg, h, obs, log)
	}

	// --- Submission path ---
	var submitter api.Submitter
	switch cfg.Onboarding.SubmissionMode {
	case config.SubmissionModeProcess:
		if zeebe == nil {
			zapLog.Fatal("submission_mode=process requires camunda.enabled")
		}
		submitter = api.NewProcessSubmitter(zeebe, cfg.Camunda.ProcessID, log)
	default:
		submitter = api.NewInlineSubmitter(h.assess, h.store, h.notify, log)
	}

	apiServer, err := api.NewServer(api.Options{
		Documents:      h.documents,
		Submissions:    submitter,
		Status:         h.status,
		Contracts:      h.contracts,
		MaxUploadBytes: cfg.Onboarding.MaxUploadBytes,
		Logger:         log,
		Observability:  obs,
	})
	if err != nil {
		zapLog.Fatal("failed to build api server", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      apiServer.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		zapLog.Info("Onboarding API listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("api server failed", zap.Error(err))
		}
	}()

	// --- Health & metrics ---
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"workers": len(workers),
		})
	})
	metricsMux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if zeebe != nil {
			if err := zeebe.HealthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "reason": "zeebe unavailable"})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddress, Handler: metricsMux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownPeriod))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("api server forced to shutdown", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("metrics server forced to shutdown", zap.Error(err))
	}

	zapLog.Info("Onboarding manager stopped gracefully")
}

func buildHandlers(ctx context.Context, cfg *config.Config, repo *applications.Repository, store storage.ContractStore, obs *observability.Observability, log logger.Logger) (*handlers, error) {
	documents, err := pd.NewHandler(pd.FromAppConfig(cfg), log)
	if err != nil {
		return nil, err
	}

	assess, err := amr.NewHandler(amr.HandlerOptions{
		AppConfig:     cfg,
		Logger:        log,
		Observability: obs,
	})
	if err != nil {
		return nil, err
	}

	storeCfg := sar.LoadConfig()
	if wc := config.GetWorkerConfig(cfg, sar.TaskType); wc.Timeout > 0 {
		storeCfg.Timeout = config.GetDuration(wc.Timeout)
	}

	statusCfg := cas.DefaultConfig()
	if wc := config.GetWorkerConfig(cfg, cas.TaskType); wc.Timeout > 0 {
		statusCfg.Timeout = config.GetDuration(wc.Timeout)
	}
	status, err := cas.NewHandler(statusCfg, repo, log)
	if err != nil {
		return nil, err
	}

	contractCfg := gc.DefaultConfig()
	if wc := config.GetWorkerConfig(cfg, gc.TaskType); wc.Timeout > 0 {
		contractCfg.Timeout = config.GetDuration(wc.Timeout)
	}
	contracts, err := gc.NewHandler(gc.HandlerOptions{
		Config: contractCfg,
		Lookup: repo,
		Store:  store,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	notifyCfg := sdn.LoadConfig()
	notifyCfg.EmailEnabled = cfg.Integrations.AWS.SES.Enabled
	notifyCfg.EventsEnabled = cfg.Integrations.AWS.SNS.Enabled
	notifyCfg.FromEmail = cfg.Integrations.AWS.SES.FromEmail
	notifyCfg.TopicARN = cfg.Integrations.AWS.SNS.TopicARN
	if wc := config.GetWorkerConfig(cfg, sdn.TaskType); wc.Timeout > 0 {
		notifyCfg.Timeout = config.GetDuration(wc.Timeout)
	}

	var (
		sesClient sdn.SESService
		snsClient sdn.SNSService
	)
	if notifyCfg.EmailEnabled {
		c, err := awsclients.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		sesClient = c
	}
	if notifyCfg.EventsEnabled {
		c, err := awsclients.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		snsClient = c
	}

	return &handlers{
		documents: documents,
		assess:    assess,
		store:     sar.NewHandler(storeCfg, repo, log),
		status:    status,
		contracts: contracts,
		notify:    sdn.NewHandler(notifyCfg, sesClient, snsClient, log),
	}, nil
}

func startWorkers(client zbc.Client, cfg *config.Config, h *handlers, obs *observability.Observability, log logger.Logger) []*camunda.Worker {
	specs := []camunda.WorkerSpec{
		{TaskType: pd.TaskType, Handler: h.documents},
		{TaskType: amr.TaskType, Handler: h.assess},
		{TaskType: sar.TaskType, Handler: h.store},
		{TaskType: cas.TaskType, Handler: h.status},
		{TaskType: gc.TaskType, Handler: h.contracts},
		{TaskType: sdn.TaskType, Handler: h.notify},
	}

	var workers []*camunda.Worker
	for _, spec := range specs {
		if !config.IsWorkerEnabled(cfg, spec.TaskType) {
			log.Info("worker disabled", map[string]interface{}{"taskType": spec.TaskType})
			continue
		}
		wc := config.GetWorkerConfig(cfg, spec.TaskType)
		spec.MaxJobsActive = wc.MaxJobsActive
		if spec.MaxJobsActive <= 0 {
			spec.MaxJobsActive = cfg.Camunda.MaxJobsActive
		}
		spec.Timeout = config.GetDuration(wc.Timeout)
		if spec.Timeout <= 0 {
			spec.Timeout = config.GetDuration(cfg.Camunda.Timeout)
		}
		spec.Recorder = obs
		workers = append(workers, camunda.NewWorker(client, spec, log))
	}

	log.Info("workers started", map[string]interface{}{"count": len(workers)})
	return workers
}
