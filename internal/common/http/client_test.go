package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoWithRetry_RecoversFromTransientStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClientWithRetry(time.Second, RetryPolicy{MaxRetries: 3, Backoff: time.Millisecond})
	resp, err := client.DoWithRetry(context.Background(), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, server.URL, nil)
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoWithRetry_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClientWithRetry(time.Second, RetryPolicy{MaxRetries: 3, Backoff: time.Millisecond})
	resp, err := client.DoWithRetry(context.Background(), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, server.URL, nil)
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoWithRetry_ReturnsLastStatusWhenBudgetSpent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClientWithRetry(time.Second, RetryPolicy{MaxRetries: 1, Backoff: time.Millisecond})
	resp, err := client.DoWithRetry(context.Background(), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, server.URL, nil)
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestIsRetryableStatus(t *testing.T) {
	assert.True(t, IsRetryableStatus(http.StatusTooManyRequests))
	assert.True(t, IsRetryableStatus(http.StatusBadGateway))
	assert.False(t, IsRetryableStatus(http.StatusNotFound))
	assert.False(t, IsRetryableStatus(http.StatusOK))
}
