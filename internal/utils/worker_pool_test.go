package utils

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsAllJobsBeforeStop(t *testing.T) {
	p := NewWorkerPool(4, 128, nil)
	p.Start()

	var done atomic.Int64
	for range 100 {
		assert.True(t, p.Submit(func() { done.Add(1) }))
	}
	p.Stop()

	assert.Equal(t, int64(100), done.Load())
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	p := NewWorkerPool(1, 4, nil)
	p.Start()

	var done atomic.Bool
	p.Submit(func() { panic("boom") })
	p.Submit(func() { done.Store(true) })
	p.Stop()

	assert.True(t, done.Load())
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	p := NewWorkerPool(2, 2, nil)
	p.Start()
	p.Stop()
	p.Stop()

	assert.False(t, p.Submit(func() {}))
}

func TestWorkerPool_SubmitDoesNotBlockWhenFull(t *testing.T) {
	p := NewWorkerPool(1, 1, nil)
	p.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, p.Submit(func() {
		close(started)
		<-release
	}))
	<-started
	require.True(t, p.Submit(func() { <-release }))

	accepted := make(chan bool, 1)
	go func() { accepted <- p.Submit(func() {}) }()
	select {
	case ok := <-accepted:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(release)
	p.Stop()
}
