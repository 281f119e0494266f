package processing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestProcessorRunsJobs(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	p := New(2, nil)
	p.Start(ctx)

	done := make(chan string, 2)
	require.NoError(t, p.Submit(Job{DraftID: "a", Op: "verify", Run: func(context.Context) error {
		done <- "a"
		return nil
	}}))
	require.NoError(t, p.Submit(Job{DraftID: "b", Op: "mint", Run: func(context.Context) error {
		done <- "b"
		return errors.New("boom")
	}}))
	got := []string{<-done, <-done}
	assert.ElementsMatch(t, []string{"a", "b"}, got)

	cancel()
	p.Wait()
}

func TestProcessorQueueFull(t *testing.T) {
	p := New(1, nil)
	// Not started: the buffer fills and further submits are refused.
	noop := Job{Run: func(context.Context) error { return nil }}
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Submit(noop))
	}
	assert.ErrorIs(t, p.Submit(noop), ErrQueueFull)
}

func TestProcessorAbortsQueuedJobsOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := New(1, nil)

	var ran, aborted atomic.Int32
	job := Job{
		Run:   func(context.Context) error { ran.Add(1); return nil },
		Abort: func() { aborted.Add(1) },
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(job))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Start(ctx)
	p.Wait()

	assert.Equal(t, int32(3), ran.Load()+aborted.Load())
	assert.ErrorIs(t, p.Submit(job), ErrStopped)
}
