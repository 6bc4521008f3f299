package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobsOnInterval(t *testing.T) {
	var ticks atomic.Int32
	s := NewScheduler(testLogger(), Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			ticks.Add(1)
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "no ticks after Stop")
}

func TestSchedulerStartTwice(t *testing.T) {
	s := NewScheduler(testLogger(), Job{
		Name:     "tick",
		Interval: time.Minute,
		Run:      func(context.Context) error { return nil },
	})

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerStarted)
	s.Stop()

	// A stopped scheduler may be started again.
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	s := NewScheduler(testLogger(), Job{
		Name: "broken",
		Run:  func(context.Context) error { return nil },
	})
	assert.Error(t, s.Start(context.Background()))
}

func TestSchedulerJobFailureDoesNotStopOthers(t *testing.T) {
	var healthy atomic.Int32
	s := NewScheduler(testLogger(),
		Job{
			Name:     "failing",
			Interval: 5 * time.Millisecond,
			Run:      func(context.Context) error { return errors.New("boom") },
		},
		Job{
			Name:     "panicking",
			Interval: 5 * time.Millisecond,
			Run:      func(context.Context) error { panic("boom") },
		},
		Job{
			Name:     "healthy",
			Interval: 5 * time.Millisecond,
			Run: func(context.Context) error {
				healthy.Add(1)
				return nil
			},
		},
	)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return healthy.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestSchedulerStopWaitsForInFlightRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	s := NewScheduler(testLogger(), Job{
		Name:     "slow",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			finished.Store(true)
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	<-started
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	s.Stop()
	assert.True(t, finished.Load(), "Stop returns only after the in-flight run completed")
}
