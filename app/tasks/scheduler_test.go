package tasks

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	runs    atomic.Int32
	release chan struct{}
}

func (r *countingRunner) Run(ctx context.Context) (Summary, error) {
	r.runs.Add(1)
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}
	return Summary{RunID: "test"}, nil
}

func TestScheduler_RunsOnStartAndOnTrigger(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, time.Hour)
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return runner.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.True(t, s.TriggerRun())
	require.Eventually(t, func() bool { return runner.runs.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_CoalescesTriggers(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{})}
	s := NewScheduler(runner, time.Hour)
	s.Start()

	require.Eventually(t, func() bool { return runner.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.True(t, s.TriggerRun())
	assert.False(t, s.TriggerRun(), "a second trigger while one is pending is dropped")

	runner.release <- struct{}{}
	require.Eventually(t, func() bool { return runner.runs.Load() == 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.Equal(t, int32(2), runner.runs.Load())
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, 10*time.Millisecond)
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return runner.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
}
