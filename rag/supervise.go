package rag

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Worker exit codes. Positive codes are reserved for specific fatal
// categories.
const (
	StatusSuccess      = 0
	StatusCancelled    = -1
	StatusMissingModel = 2
	StatusMissingIndex = 3
)

// Supervision defaults.
const (
	// DefaultWorkerTimeout is the wall-clock ceiling for a single worker.
	DefaultWorkerTimeout = 300 * time.Second
	// stopGracePeriod is how long a stop request waits for the worker to
	// wind down before the handle is abandoned.
	stopGracePeriod = 500 * time.Millisecond
	// lineBuffer bounds the backpressure between a producing worker and
	// the single consumer.
	lineBuffer = 256
)

// WorkerFunc is an in-process worker task: it emits output lines through
// emit and returns an exit code. The context is cancelled on stop requests
// and timeouts; cooperative workers poll it between units of work.
type WorkerFunc func(ctx context.Context, emit func(line string)) int

// Supervisor launches worker tasks and enforces the cancellation and
// timeout contract around them.
type Supervisor struct {
	timeout time.Duration
	logger  Logger
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithWorkerTimeout sets the wall-clock ceiling per worker. Zero disables
// the ceiling.
func WithWorkerTimeout(d time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.timeout = d }
}

// WithSupervisorLogger sets the logger.
func WithSupervisorLogger(l Logger) SupervisorOption {
	return func(s *Supervisor) { s.logger = l }
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(options ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		timeout: DefaultWorkerTimeout,
		logger:  GlobalLogger,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Handle is a running worker task. Output lines are delivered in order,
// one at a time, on a single consumer goroutine; the completion callback
// fires exactly once, after the last delivered line.
type Handle struct {
	id     string
	cancel context.CancelFunc
	ctx    context.Context
	logger Logger

	lines      chan string
	workerDone chan struct{}
	done       chan struct{}

	onLine     func(string)
	onComplete func(int)

	stopRequested atomic.Bool
	completed     atomic.Bool
	workerCode    atomic.Int32
	completeOnce  sync.Once
	timer         *time.Timer

	errMu sync.Mutex
	err   error
}

// Start launches a worker. onLine receives each output line; onComplete
// receives the exit code exactly once. Either callback may be nil.
func (s *Supervisor) Start(worker WorkerFunc, onLine func(string), onComplete func(int)) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		id:         uuid.NewString(),
		cancel:     cancel,
		ctx:        ctx,
		logger:     s.logger,
		lines:      make(chan string, lineBuffer),
		workerDone: make(chan struct{}),
		done:       make(chan struct{}),
		onLine:     onLine,
		onComplete: onComplete,
	}

	go h.runWorker(worker)
	go h.consume()

	if s.timeout > 0 {
		h.timer = time.AfterFunc(s.timeout, func() {
			s.logger.Warn("worker exceeded wall-clock ceiling", "handle", h.id, "timeout", s.timeout)
			h.stopWith(ErrTimeout)
		})
	}
	return h
}

// ID returns the handle identifier.
func (h *Handle) ID() string { return h.id }

// RequestStop flips the cancellation flag and signals the worker. It is
// idempotent and safe from any goroutine. The worker gets a short grace
// period to wind down; afterwards the handle completes with -1 regardless.
func (h *Handle) RequestStop() {
	h.stopWith(ErrCancelled)
}

// Wait blocks until the completion callback has fired.
func (h *Handle) Wait() {
	<-h.done
}

// Done exposes completion for select loops.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err reports why the handle ended early: ErrCancelled, ErrTimeout, or nil
// for a normal completion.
func (h *Handle) Err() error {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	return h.err
}

func (h *Handle) stopWith(cause error) {
	if h.completed.Load() {
		return
	}
	if !h.stopRequested.CompareAndSwap(false, true) {
		return
	}
	h.errMu.Lock()
	h.err = cause
	h.errMu.Unlock()

	h.cancel()
	go func() {
		select {
		case <-h.workerDone:
		case <-time.After(stopGracePeriod):
			h.logger.Warn("worker did not stop within grace period, abandoning", "handle", h.id)
		}
		h.complete(StatusCancelled)
	}()
}

// emit is handed to the worker. Lines are dropped once a stop has been
// requested; a full buffer blocks the worker until the consumer catches up
// or the task is cancelled.
func (h *Handle) emit(line string) {
	if h.stopRequested.Load() {
		return
	}
	select {
	case h.lines <- line:
	case <-h.ctx.Done():
	}
}

func (h *Handle) runWorker(worker WorkerFunc) {
	code := worker(h.ctx, h.emit)
	h.workerCode.Store(int32(code))
	close(h.lines)
	close(h.workerDone)
}

// consume is the single consumer: it delivers lines in order and then
// completes the handle. Delivery stops as soon as a stop request or a
// completion is observed, so at most one line can still arrive after
// RequestStop returns and none after the completion callback.
func (h *Handle) consume() {
	for line := range h.lines {
		if h.completed.Load() || h.stopRequested.Load() {
			break
		}
		if h.onLine != nil {
			h.onLine(line)
		}
	}
	if h.stopRequested.Load() {
		// the stop goroutine owns completion
		return
	}
	h.complete(int(h.workerCode.Load()))
}

func (h *Handle) complete(code int) {
	h.completeOnce.Do(func() {
		h.completed.Store(true)
		if h.timer != nil {
			h.timer.Stop()
		}
		if h.stopRequested.Load() {
			code = StatusCancelled
		}
		if h.onComplete != nil {
			h.onComplete(code)
		}
		close(h.done)
	})
}
