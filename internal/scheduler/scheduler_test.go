package scheduler

import (
	"bytes"
	"context"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(log.New(&bytes.Buffer{}, "", 0))
	err := s.Add("ingest", "not a cron", func(context.Context, time.Time) error { return nil })
	require.Error(t, err)
	assert.Zero(t, s.Jobs())
}

func TestAddSkipsEmptySpec(t *testing.T) {
	s := New(log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, s.Add("archive", "", func(context.Context, time.Time) error { return nil }))
	assert.Zero(t, s.Jobs())
}

func TestAddRejectsNilJob(t *testing.T) {
	s := New(nil)
	assert.Error(t, s.Add("report", "@daily", nil))
}

func TestStartRunsJobs(t *testing.T) {
	s := New(log.New(&bytes.Buffer{}, "", 0))
	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context, now time.Time) error {
		runs.Add(1)
		return nil
	}))
	assert.Equal(t, 1, s.Jobs())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runs.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
