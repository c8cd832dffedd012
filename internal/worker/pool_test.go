package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// indexResult implements Result
type indexResult struct {
	index int
	err   error
}

func (r *indexResult) GetError() error {
	return r.err
}

// funcJob implements Job
type funcJob func(ctx context.Context) Result

func (f funcJob) Execute(ctx context.Context) Result {
	return f(ctx)
}

func indexed(i int, delay time.Duration, err error) Job {
	return funcJob(func(ctx context.Context) Result {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &indexResult{index: i, err: ctx.Err()}
			}
		}
		return &indexResult{index: i, err: err}
	})
}

func TestNewPool(t *testing.T) {
	tests := []struct {
		workers int
		want    int
	}{
		{5, 5},
		{1, 1},
		{0, 1},
		{-3, 1},
	}
	for _, tt := range tests {
		if got := NewPool(context.Background(), tt.workers).workers; got != tt.want {
			t.Errorf("NewPool(%d) workers = %d, want %d", tt.workers, got, tt.want)
		}
	}
}

func TestPool_SubmissionOrder(t *testing.T) {
	pool := NewPool(context.Background(), 4)
	pool.Start()

	// Later jobs finish first
	count := 8
	for i := 0; i < count; i++ {
		pool.Submit(indexed(i, time.Duration(count-i)*3*time.Millisecond, nil))
	}

	results := pool.Wait()
	if len(results) != count {
		t.Fatalf("expected %d results, got %d", count, len(results))
	}
	for i, r := range results {
		if r == nil {
			t.Fatalf("slot %d is empty", i)
		}
		if got := r.(*indexResult).index; got != i {
			t.Errorf("slot %d holds result of job %d", i, got)
		}
	}
}

func TestPool_ConcurrencyLimit(t *testing.T) {
	workers := 3
	pool := NewPool(context.Background(), workers)
	pool.Start()

	var running, peak, completed int32
	for i := 0; i < 30; i++ {
		pool.Submit(funcJob(func(ctx context.Context) Result {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			atomic.AddInt32(&completed, 1)
			return &indexResult{}
		}))
	}
	pool.Wait()

	if completed != 30 {
		t.Errorf("expected 30 completed jobs, got %d", completed)
	}
	if peak > int32(workers) {
		t.Errorf("peak concurrency %d exceeded %d workers", peak, workers)
	}
}

func TestPool_ErrorsStayInTheirSlot(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	pool.Submit(indexed(0, 0, nil))
	pool.Submit(indexed(1, 0, errors.New("unreadable bundle")))
	pool.Submit(indexed(2, 0, nil))

	results := pool.Wait()
	for i, r := range results {
		if failed := r.GetError() != nil; failed != (i == 1) {
			t.Errorf("slot %d: error = %v", i, r.GetError())
		}
	}
}

func TestPool_ManyJobsBeforeWait(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	// far more jobs than the queue and result buffers hold
	count := 100
	for i := 0; i < count; i++ {
		pool.Submit(indexed(i, 0, nil))
	}

	results := pool.Wait()
	if len(results) != count {
		t.Fatalf("expected %d results, got %d", count, len(results))
	}
	for i, r := range results {
		if r == nil {
			t.Errorf("slot %d is empty", i)
		}
	}
}

func TestPool_WaitWithoutJobs(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	if results := pool.Wait(); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()
	pool.Shutdown()

	done := make(chan struct{})
	go func() {
		if pool.Submit(indexed(0, 0, nil)) {
			t.Error("expected Submit to report a stopped pool")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit after shutdown blocked")
	}
}

func TestPool_CancelLeavesEmptySlots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(funcJob(func(ctx context.Context) Result {
		close(started)
		<-ctx.Done()
		return &indexResult{err: ctx.Err()}
	}))
	<-started

	// The only worker is busy, so these wait in the queue
	pool.Submit(indexed(1, 0, nil))
	pool.Submit(indexed(2, 0, nil))
	cancel()

	done := make(chan []Result)
	go func() { done <- pool.Wait() }()

	select {
	case results := <-done:
		if len(results) != 3 {
			t.Fatalf("expected 3 slots, got %d", len(results))
		}
		if results[1] != nil || results[2] != nil {
			t.Errorf("queued jobs ran after cancel: %v, %v", results[1], results[2])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}
