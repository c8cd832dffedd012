package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type task struct {
	index int
	job   Job
}

type outcome struct {
	index  int
	result Result
}

// Pool runs jobs on a fixed number of goroutines.
//
// Wait returns one slot per submitted job, in submission order. A job that
// never ran because the pool was stopped leaves a nil slot. Results are
// drained while jobs run, so any number of jobs may be submitted before Wait.
type Pool struct {
	workers   int
	queue     chan task
	results   chan outcome
	slots     []Result
	collected chan struct{}
	submitted atomic.Int64
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	queueOnce sync.Once
	closeOnce sync.Once
}

// NewPool creates a new worker pool with the specified number of workers.
// Cancelling ctx stops the workers.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:   workers,
		queue:     make(chan task, workers*2),
		results:   make(chan outcome, workers*2),
		collected: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	go p.collect()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// collect is the only writer of slots until collected is closed.
func (p *Pool) collect() {
	defer close(p.collected)
	for o := range p.results {
		for len(p.slots) <= o.index {
			p.slots = append(p.slots, nil)
		}
		p.slots[o.index] = o.result
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			// A stopped pool runs nothing further, even if jobs are queued
			if p.ctx.Err() != nil {
				return
			}
			o := outcome{index: t.index, result: t.job.Execute(p.ctx)}
			select {
			case p.results <- o:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It returns false when the pool has been shut down or
// its context cancelled; the job still takes a (nil) slot in Wait's result.
func (p *Pool) Submit(job Job) bool {
	t := task{index: int(p.submitted.Add(1)) - 1, job: job}
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.queue <- t:
		return true
	}
}

// Wait waits for all submitted jobs and returns their results in
// submission order. Submit must not be called after Wait.
func (p *Pool) Wait() []Result {
	p.queueOnce.Do(func() { close(p.queue) })

	p.wg.Wait()
	p.closeResults()
	<-p.collected

	out := make([]Result, p.submitted.Load())
	copy(out, p.slots)
	return out
}

// Shutdown stops the pool without waiting for queued jobs
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
