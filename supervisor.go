package loki

import (
	"time"

	"github.com/mikeplath/loki/rag"
)

// Supervisor launches in-process worker tasks and enforces cancellation
// and timeout semantics around them.
type Supervisor = rag.Supervisor

// SupervisorOption configures a Supervisor.
type SupervisorOption = rag.SupervisorOption

// Handle is a running worker task with ordered line delivery, a single
// completion callback and an idempotent stop request.
type Handle = rag.Handle

// WorkerFunc is an in-process worker task.
type WorkerFunc = rag.WorkerFunc

// NewSupervisor creates a Supervisor.
func NewSupervisor(options ...SupervisorOption) *Supervisor {
	return rag.NewSupervisor(options...)
}

// WithWorkerTimeout sets the wall-clock ceiling per worker.
func WithWorkerTimeout(d time.Duration) SupervisorOption {
	return rag.WithWorkerTimeout(d)
}

// Worker exit codes.
const (
	StatusSuccess      = rag.StatusSuccess
	StatusCancelled    = rag.StatusCancelled
	StatusMissingModel = rag.StatusMissingModel
	StatusMissingIndex = rag.StatusMissingIndex
)
