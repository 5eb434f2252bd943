package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializerRunsInSubmissionOrder(t *testing.T) {
	var s Serializer
	ctx := context.Background()

	release := make(chan struct{})
	blockerDone := make(chan error, 1)
	go func() {
		blockerDone <- s.Do(ctx, func(context.Context) error {
			<-release
			return nil
		})
	}()
	require.Eventually(t, func() bool { return s.Pending() == 0 && isDraining(&s) }, time.Second, time.Millisecond)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	const n = 20
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Do(ctx, func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
		// Wait for this submission to be queued before issuing the next one.
		require.Eventually(t, func() bool { return s.Pending() == i }, time.Second, time.Millisecond)
	}

	close(release)
	wg.Wait()
	require.NoError(t, <-blockerDone)

	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, order)
}

func TestSerializerNeverOverlapsJobs(t *testing.T) {
	var s Serializer
	ctx := context.Background()

	var inFlight, maxInFlight atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(ctx, func(context.Context) error {
				cur := inFlight.Add(1)
				for {
					prev := maxInFlight.Load()
					if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
						break
					}
				}
				time.Sleep(100 * time.Microsecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestSerializerIsolatesFailures(t *testing.T) {
	var s Serializer
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := s.Do(ctx, func(context.Context) error { return errBoom })
	assert.ErrorIs(t, err, errBoom)

	err = s.Do(ctx, func(context.Context) error { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	ran := false
	err = s.Do(ctx, func(context.Context) error { ran = true; return nil })
	assert.NoError(t, err)
	assert.True(t, ran)
}

func TestSerializerRejectsDoneContext(t *testing.T) {
	var s Serializer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := s.Do(ctx, func(context.Context) error { ran = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
	assert.Equal(t, 0, s.Pending())
}

func isDraining(s *Serializer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}
