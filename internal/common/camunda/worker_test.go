package camunda

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
)

type countingHandler struct{ calls int }

func (h *countingHandler) Handle(worker.JobClient, entities.Job) { h.calls++ }

type fakeRecorder struct {
	mu        sync.Mutex
	processed []string
	durations []time.Duration
}

func (r *fakeRecorder) RecordJobProcessed(_ context.Context, taskType, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = append(r.processed, taskType+":"+status)
}

func (r *fakeRecorder) RecordJobDuration(_ context.Context, _ string, d time.Duration, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations = append(r.durations, d)
}

func TestInstrument_RecordsEveryJob(t *testing.T) {
	h := &countingHandler{}
	rec := &fakeRecorder{}

	handle := instrument("process-document", h, rec)
	handle(nil, entities.Job{})
	handle(nil, entities.Job{})

	assert.Equal(t, 2, h.calls)
	assert.Equal(t, []string{"process-document:handled", "process-document:handled"}, rec.processed)
	assert.Len(t, rec.durations, 2)
}

func TestInstrument_WithoutRecorder(t *testing.T) {
	h := &countingHandler{}
	assert.NotPanics(t, func() {
		instrument("generate-contract", h, nil)(nil, entities.Job{})
	})
	assert.Equal(t, 1, h.calls)
}
