// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/common/metrics"
)

// JobHandler is implemented by every onboarding task handler.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// JobRecorder receives one record per handled job. *observability.Observability
// implements it.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

// WorkerSpec describes one job subscription. Recorder is optional.
type WorkerSpec struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
	Handler       JobHandler
	Recorder      JobRecorder
}

// Worker owns one open job subscription. Closing it leaves the shared
// Zeebe client open.
type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

func NewWorker(client zbc.Client, spec WorkerSpec, log logger.Logger) *Worker {
	log = log.WithFields(map[string]interface{}{"taskType": spec.TaskType})

	jobWorker := client.NewJobWorker().
		JobType(spec.TaskType).
		Handler(instrument(spec.TaskType, spec.Handler, spec.Recorder)).
		MaxJobsActive(spec.MaxJobsActive).
		Timeout(spec.Timeout).
		Open()

	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": spec.MaxJobsActive,
		"timeout":       spec.Timeout.String(),
	})

	return &Worker{
		worker:   jobWorker,
		logger:   log,
		taskType: spec.TaskType,
	}
}

// instrument records active and duration metrics around a handler. Handlers
// complete or fail the job themselves, so the recorder only sees "handled".
func instrument(taskType string, h JobHandler, rec JobRecorder) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		start := time.Now()
		defer func() {
			elapsed := time.Since(start)
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
			if rec != nil {
				ctx := context.Background()
				rec.RecordJobProcessed(ctx, taskType, "handled")
				rec.RecordJobDuration(ctx, taskType, elapsed, "handled")
			}
		}()
		h.Handle(client, job)
	}
}

func (w *Worker) TaskType() string { return w.taskType }

func (w *Worker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
