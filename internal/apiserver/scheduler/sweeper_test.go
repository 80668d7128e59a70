package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeExpiryStore struct {
	calls   atomic.Int64
	expired int64
	err     error
}

func (f *fakeExpiryStore) ExpireOverdueRequests(_ context.Context, _ time.Time) (int64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	return f.expired, nil
}

func TestSweeper_SweepsOnInterval(t *testing.T) {
	store := &fakeExpiryStore{expired: 2}
	s := NewSweeper(store, 10*time.Millisecond, zap.NewNop())

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return store.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestSweeper_StopHaltsLoop(t *testing.T) {
	store := &fakeExpiryStore{}
	s := NewSweeper(store, 10*time.Millisecond, zap.NewNop())

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	calls := store.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, store.calls.Load())
}

func TestSweeper_StartIsIdempotent(t *testing.T) {
	store := &fakeExpiryStore{}
	s := NewSweeper(store, 10*time.Millisecond, zap.NewNop())

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSweeper_KeepsRunningAfterError(t *testing.T) {
	store := &fakeExpiryStore{err: errors.New("db down")}
	s := NewSweeper(store, 10*time.Millisecond, zap.NewNop())

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return store.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}
