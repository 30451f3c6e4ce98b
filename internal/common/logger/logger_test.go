package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestZapAdapter_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.WithFields(map[string]interface{}{"component": "workflow-store"}).
		WithError(errors.New("boom")).
		Warn("stale completion discarded", map[string]interface{}{
			"category": "bank_statement",
			"cause":    errors.New("session mismatch"),
		})

	entries := logs.All()
	assert.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "stale completion discarded", entry.Message)

	ctx := entry.ContextMap()
	assert.Equal(t, "workflow-store", ctx["component"])
	assert.Equal(t, "bank_statement", ctx["category"])
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, "session mismatch", ctx["cause"])
}

func TestNoOpLogger_DoesNotPanic(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.With(map[string]interface{}{"k": "v"}).Info("ignored", nil)
		log.Debug("ignored", map[string]interface{}{})
		log.Error("ignored", map[string]interface{}{"n": 1})
	})
}
