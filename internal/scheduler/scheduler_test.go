package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-bug-tracker-go/internal/config"
	"email-bug-tracker-go/internal/mailbox"
	"email-bug-tracker-go/internal/metrics"
	"email-bug-tracker-go/internal/reconciler"
)

var testMetrics = metrics.NewMetrics()

var errMailboxDown = errors.New("mailbox unavailable")

// newTestScheduler builds a scheduler whose reconciler never reaches a
// real mailbox; runs fail fast with a non-connection error.
func newTestScheduler(intervalMinutes int) *Scheduler {
	dial := func() (mailbox.Source, error) { return nil, errMailboxDown }
	r := reconciler.New(dial, nil, testMetrics, 0, time.Millisecond)
	cfg := &config.SchedulerConfig{IntervalMinutes: intervalMinutes, MaxRetries: 0, RetryDelay: time.Millisecond}
	return NewScheduler(cfg, r)
}

func TestSchedulerStartStop(t *testing.T) {
	s := newTestScheduler(60)

	assert.False(t, s.IsRunning())
	assert.True(t, s.GetNextRun().IsZero())

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.GetNextRun().IsZero())
	assert.True(t, s.GetNextRun().After(time.Now()))

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.True(t, s.GetNextRun().IsZero())
}

func TestSchedulerDoubleStart(t *testing.T) {
	s := newTestScheduler(60)

	require.NoError(t, s.Start())
	defer s.Stop()

	err := s.Start()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestSchedulerStopWhenNotRunning(t *testing.T) {
	s := newTestScheduler(60)
	assert.NoError(t, s.Stop())
}

func TestSchedulerRestart(t *testing.T) {
	s := newTestScheduler(60)

	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())

	// A stopped scheduler must come back with a fresh run context and a
	// single cron entry.
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.NoError(t, s.ctx.Err())
	assert.Len(t, s.cron.Entries(), 1)

	require.NoError(t, s.Stop())
}

func TestSchedulerRunOnce(t *testing.T) {
	s := newTestScheduler(60)

	// RunOnce works without Start and surfaces the reconciler's error.
	_, err := s.RunOnce()
	assert.ErrorIs(t, err, errMailboxDown)
}

func TestSchedulerWaitWithNoRuns(t *testing.T) {
	s := newTestScheduler(60)

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked with no in-flight runs")
	}
}
