package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickwise/internal/types"
)

type flakyStore struct {
	err   error
	calls int
}

func (s *flakyStore) EventRecords(context.Context, types.EventRecordsFilter, bool, int) ([]types.EventRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []types.EventRecord{{StorageID: 1}}, nil
}

func TestBreakerStorePassesThrough(t *testing.T) {
	inner := &flakyStore{}
	store := NewBreakerStore(BreakerStoreConfig{Store: inner})

	records, err := store.EventRecords(context.Background(), types.EventRecordsFilter{}, true, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, inner.calls)
}

func TestBreakerStoreOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyStore{err: errors.New("connection refused")}
	store := NewBreakerStore(BreakerStoreConfig{Store: inner})

	for i := 0; i < 5; i++ {
		_, err := store.EventRecords(context.Background(), types.EventRecordsFilter{}, true, 0)
		require.Error(t, err)
	}
	calls := inner.calls

	// The breaker is open: the store is no longer hit and callers get the
	// upstream error code.
	_, err := store.EventRecords(context.Background(), types.EventRecordsFilter{}, true, 0)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamEventLog, appErr.Code)
	assert.Equal(t, calls, inner.calls)
}
