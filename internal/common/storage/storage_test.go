package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("MERCHANT PROCESSING AGREEMENT")
	require.NoError(t, store.Put(ctx, "contract_APP-1_20250101120000.txt", data, "text/plain"))

	// caller mutation must not leak into the stored copy
	data[0] = 'X'

	ok, err := store.Exists(ctx, "contract_APP-1_20250101120000.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, size, err := store.Get(ctx, "contract_APP-1_20250101120000.txt")
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "MERCHANT PROCESSING AGREEMENT", string(body))
	assert.Equal(t, int64(len(body)), size)
	assert.Equal(t, "memory", store.Mode())
}

func TestMemoryStore_Missing(t *testing.T) {
	store := NewMemoryStore()

	_, _, err := store.Get(context.Background(), "nope.txt")
	assert.True(t, errors.Is(err, ErrObjectNotFound))

	ok, err := store.Exists(context.Background(), "nope.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsNoSuchKey(t *testing.T) {
	assert.True(t, isNoSuchKey(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.False(t, isNoSuchKey(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, isNoSuchKey(errors.New("network")))
}
