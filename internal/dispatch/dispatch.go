// Package dispatch provides the single-threaded executor the sequencer
// requires (spec.md §5): every call into the sequencer, and every
// completion closure it invokes, runs on one goroutine. This mirrors the
// teacher's pattern of a dedicated consumer goroutine (its applier/ticker
// loops) owning state through a single channel instead of fine-grained
// locking.
package dispatch

import "go.uber.org/zap"

// Dispatcher serializes work to a single goroutine. Callers submit work
// with Run; work is executed strictly in submission order.
type Dispatcher struct {
	work chan func()
	done chan struct{}
	log  *zap.SugaredLogger
}

// Option configures a Dispatcher at construction.
type Option func(*Dispatcher)

// WithLogger attaches structured logging. The default is a no-op logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// WithQueueDepth sets the buffer size of the work channel. The default is
// unbuffered, which makes Run block until the dispatcher goroutine is idle
// enough to accept the next task.
func WithQueueDepth(n int) Option {
	return func(d *Dispatcher) { d.work = make(chan func(), n) }
}

// New starts a Dispatcher's consumer goroutine and returns it. Call Stop to
// shut it down.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		work: make(chan func()),
		done: make(chan struct{}),
		log:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	for {
		select {
		case task, ok := <-d.work:
			if !ok {
				return
			}
			task()
		case <-d.done:
			return
		}
	}
}

// Run submits task to the dispatcher's goroutine. It blocks until the
// dispatcher has accepted the task (not until the task has finished
// running), unless the dispatcher has been stopped, in which case Run
// returns immediately without running task.
func (d *Dispatcher) Run(task func()) {
	select {
	case d.work <- task:
	case <-d.done:
		d.log.Debugw("dropping task submitted after dispatcher stop")
	}
}

// Stop signals the dispatcher's goroutine to exit after any in-flight task
// completes. It does not wait for the goroutine to exit; callers that need
// that guarantee should submit a task that closes a channel and wait on it.
func (d *Dispatcher) Stop() {
	select {
	case <-d.done:
		// already stopped
	default:
		close(d.done)
	}
}
