package compress

import (
	"context"
	"runtime"
	"sync"
)

// Engine runs compression on a pool of background workers so callers'
// goroutines (and the interactive loop above them) are never occupied by the
// encode itself. The API stays blocking and context-aware regardless of
// where the work runs.
type Engine struct {
	jobs      chan job
	closeOnce sync.Once
	done      chan struct{}
}

type job struct {
	ctx   context.Context
	req   Request
	reply chan reply
}

type reply struct {
	res Result
	err error
}

// NewEngine starts an engine with the given number of workers; workers <= 0
// means one per CPU.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	e := &Engine{
		jobs: make(chan job),
		done: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go e.worker()
	}
	return e
}

func (e *Engine) worker() {
	for {
		select {
		case j := <-e.jobs:
			res, err := Compress(j.ctx, j.req)
			select {
			case j.reply <- reply{res: res, err: err}:
			case <-j.ctx.Done():
			}
		case <-e.done:
			return
		}
	}
}

// Compress submits req to the pool and waits for the result. Cancelling ctx
// abandons the wait; an abandoned job's result is discarded by the worker.
func (e *Engine) Compress(ctx context.Context, req Request) (Result, error) {
	j := job{ctx: ctx, req: req, reply: make(chan reply, 1)}
	select {
	case e.jobs <- j:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-e.done:
		return Result{}, context.Canceled
	}
	select {
	case r := <-j.reply:
		return r.res, r.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Close stops the workers. Idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}
