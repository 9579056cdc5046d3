package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubmitRunsAllJobs(t *testing.T) {
	p := New(4)
	defer p.Shutdown()

	var n int64
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		p.Submit(func() {
			atomic.AddInt64(&n, 1)
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for jobs to run")
	}
	require.EqualValues(t, 100, atomic.LoadInt64(&n))
}

func TestShutdownDrainsQueueBeforeExiting(t *testing.T) {
	p := New(2)
	var n int64
	for i := 0; i < 20; i++ {
		p.Submit(func() { atomic.AddInt64(&n, 1) })
	}
	p.Shutdown()
	require.EqualValues(t, 20, atomic.LoadInt64(&n))
}

func TestSubmitAfterShutdownIsNoop(t *testing.T) {
	p := New(1)
	p.Shutdown()
	require.NotPanics(t, func() { p.Submit(func() {}) })
}

func TestNewClampsNonPositiveCount(t *testing.T) {
	p := New(0)
	defer p.Shutdown()

	done := make(chan struct{})
	p.Submit(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool with clamped worker count never ran job")
	}
}
