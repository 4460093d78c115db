package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	calls  int32
	called chan struct{}
	block  chan struct{}
	err    error
}

func (f *fakeJob) run(ctx context.Context) error {
	atomic.AddInt32(&f.calls, 1)
	if f.called != nil {
		f.called <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.err
}

func waitCalled(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestSchedulerTrigger(t *testing.T) {
	job := &fakeJob{called: make(chan struct{}, 1)}
	s := NewScheduler(false, Job{Name: "a", Run: job.run})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	require.True(t, s.Trigger("a"))
	waitCalled(t, job.called)
	assert.False(t, s.Trigger("missing"))
}

func TestSchedulerRunOnStart(t *testing.T) {
	job := &fakeJob{called: make(chan struct{}, 1), err: errors.New("boom")}
	s := NewScheduler(true, Job{Name: "a", Run: job.run})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	waitCalled(t, job.called)
}

func TestSchedulerNoOverlap(t *testing.T) {
	job := &fakeJob{called: make(chan struct{}, 2), block: make(chan struct{})}
	s := NewScheduler(false, Job{Name: "a", Run: job.run})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	s.Trigger("a")
	waitCalled(t, job.called)
	s.Trigger("a")

	select {
	case <-job.called:
		t.Fatal("job ran concurrently with itself")
	case <-time.After(200 * time.Millisecond):
	}

	close(job.block)
	s.Stop()
	assert.LessOrEqual(t, atomic.LoadInt32(&job.calls), int32(2))
}

func TestSchedulerInterval(t *testing.T) {
	job := &fakeJob{called: make(chan struct{}, 10)}
	s := NewScheduler(false, Job{Name: "a", Interval: 10 * time.Millisecond, Run: job.run})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	waitCalled(t, job.called)
	waitCalled(t, job.called)
}
