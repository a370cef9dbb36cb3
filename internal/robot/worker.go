// Package robot holds the per-robot mutable state and the worker queue
// that serializes every mutation to it. One goroutine per robot consumes
// the queue; no two jobs for the same robot ever run concurrently, so the
// engine never needs ad hoc locking around robot state.
package robot

import "sync"

// Worker is an unbounded FIFO of jobs drained by a single goroutine.
// Schedule never blocks the caller. Jobs scheduled from any goroutine run
// in submission order.
type Worker struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	done    chan struct{}
}

// NewWorker starts the consumer goroutine and returns the queue.
func NewWorker() *Worker {
	w := &Worker{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

// Schedule enqueues a job and returns immediately. Jobs scheduled after
// Stop are dropped.
func (w *Worker) Schedule(job func()) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.queue = append(w.queue, job)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Stop drains the queue and waits for the consumer to exit. Any job already
// running finishes before Stop returns, so callers never observe a
// half-applied mutation. Must not be called from a queued job.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.stopped = true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	<-w.done
}

func (w *Worker) loop() {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			if w.stopped {
				w.mu.Unlock()
				close(w.done)
				return
			}
			w.mu.Unlock()
			<-w.wake
			continue
		}
		job := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		job()
	}
}
