package txn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_SharesOneRun(t *testing.T) {
	var g Group
	var calls atomic.Int32
	release := make(chan struct{})

	fn := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		<-release
		return "done", nil
	}

	results := make(chan interface{}, 3)
	for i := 0; i < 3; i++ {
		go func() {
			v, err, _ := g.Do(context.Background(), "k", fn)
			assert.NoError(t, err)
			results <- v
		}()
	}
	require.Eventually(t, func() bool { return g.Waiters("k") == 3 }, time.Second, time.Millisecond)
	close(release)

	for i := 0; i < 3; i++ {
		assert.Equal(t, "done", <-results)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, g.Waiters("k"))
}

func TestGroup_RunSurvivesFirstCallerLeaving(t *testing.T) {
	var g Group
	release := make(chan struct{})
	runErr := make(chan error, 1)

	fn := func(ctx context.Context) (interface{}, error) {
		select {
		case <-release:
			return "done", nil
		case <-ctx.Done():
			runErr <- ctx.Err()
			return nil, ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err, _ := g.Do(firstCtx, "k", fn)
		first <- err
	}()
	require.Eventually(t, func() bool { return g.Waiters("k") == 1 }, time.Second, time.Millisecond)

	second := make(chan interface{}, 1)
	go func() {
		v, err, _ := g.Do(context.Background(), "k", fn)
		assert.NoError(t, err)
		second <- v
	}()
	require.Eventually(t, func() bool { return g.Waiters("k") == 2 }, time.Second, time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	assert.Equal(t, "done", <-second)
	assert.Empty(t, runErr)
}

func TestGroup_LastCallerLeavingCancelsRun(t *testing.T) {
	var g Group
	runErr := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err, _ := g.Do(ctx, "k", func(runCtx context.Context) (interface{}, error) {
			<-runCtx.Done()
			runErr <- runCtx.Err()
			return nil, runCtx.Err()
		})
		done <- err
	}()
	require.Eventually(t, func() bool { return g.Waiters("k") == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run not cancelled")
	}
}

func TestGroup_FreshRunAfterAbandoned(t *testing.T) {
	var g Group
	stuck := make(chan struct{})
	defer close(stuck)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err, _ := g.Do(ctx, "k", func(context.Context) (interface{}, error) {
			<-stuck
			return nil, errors.New("stale")
		})
		done <- err
	}()
	require.Eventually(t, func() bool { return g.Waiters("k") == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done

	// The abandoned run ignores its context; a new caller must not join it.
	v, err, shared := g.Do(context.Background(), "k", func(context.Context) (interface{}, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.False(t, shared)
}
