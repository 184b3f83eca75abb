package rag

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorDeliversLinesInOrder(t *testing.T) {
	s := NewSupervisor()

	var mu sync.Mutex
	var lines []string
	var codes []int
	done := make(chan struct{})

	worker := func(ctx context.Context, emit func(string)) int {
		for i := 0; i < 20; i++ {
			emit(fmt.Sprintf("line-%02d", i))
		}
		return StatusSuccess
	}
	h := s.Start(worker,
		func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		},
		func(code int) {
			mu.Lock()
			codes = append(codes, code)
			mu.Unlock()
			close(done)
		})

	<-done
	h.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lines, 20)
	for i, line := range lines {
		assert.Equal(t, fmt.Sprintf("line-%02d", i), line)
	}
	assert.Equal(t, []int{StatusSuccess}, codes, "completion fires exactly once, after the last line")
	assert.NoError(t, h.Err())
}

func TestSupervisorWorkerExitCode(t *testing.T) {
	s := NewSupervisor()
	got := make(chan int, 1)
	h := s.Start(func(ctx context.Context, emit func(string)) int {
		return StatusMissingIndex
	}, nil, func(code int) { got <- code })
	h.Wait()
	assert.Equal(t, StatusMissingIndex, <-got)
}

func TestSupervisorRequestStop(t *testing.T) {
	s := NewSupervisor()

	var after atomic.Int32
	stopped := make(chan struct{})
	var completions atomic.Int32
	var lastCode atomic.Int32

	worker := func(ctx context.Context, emit func(string)) int {
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return StatusCancelled
			case <-time.After(5 * time.Millisecond):
				emit(fmt.Sprintf("tick-%d", i))
			}
		}
	}
	h := s.Start(worker,
		func(line string) {
			select {
			case <-stopped:
				after.Add(1)
			default:
			}
		},
		func(code int) {
			completions.Add(1)
			lastCode.Store(int32(code))
		})

	time.Sleep(30 * time.Millisecond)
	h.RequestStop()
	close(stopped)
	h.RequestStop() // idempotent

	h.Wait()
	time.Sleep(20 * time.Millisecond)

	assert.LessOrEqual(t, after.Load(), int32(1),
		"at most one line may land after RequestStop returns")
	assert.Equal(t, int32(1), completions.Load(), "completion fires exactly once")
	assert.Equal(t, int32(StatusCancelled), lastCode.Load())
	assert.ErrorIs(t, h.Err(), ErrCancelled)
}

func TestSupervisorStopBeforeAnyOutput(t *testing.T) {
	s := NewSupervisor()
	completed := make(chan int, 1)
	h := s.Start(func(ctx context.Context, emit func(string)) int {
		<-ctx.Done()
		return StatusCancelled
	}, nil, func(code int) { completed <- code })

	h.RequestStop()
	h.Wait()
	assert.Equal(t, StatusCancelled, <-completed)
}

func TestSupervisorTimeout(t *testing.T) {
	s := NewSupervisor(WithWorkerTimeout(50 * time.Millisecond))
	completed := make(chan int, 1)

	start := time.Now()
	h := s.Start(func(ctx context.Context, emit func(string)) int {
		<-ctx.Done()
		return StatusCancelled
	}, nil, func(code int) { completed <- code })

	h.Wait()
	assert.Equal(t, StatusCancelled, <-completed)
	assert.ErrorIs(t, h.Err(), ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSupervisorUncooperativeWorkerAbandoned(t *testing.T) {
	s := NewSupervisor()
	completed := make(chan int, 1)
	release := make(chan struct{})

	h := s.Start(func(ctx context.Context, emit func(string)) int {
		<-release // ignores cancellation entirely
		return StatusSuccess
	}, nil, func(code int) { completed <- code })

	start := time.Now()
	h.RequestStop()
	code := <-completed
	elapsed := time.Since(start)
	close(release)

	assert.Equal(t, StatusCancelled, code)
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond, "grace period precedes abandonment")
	assert.Less(t, elapsed, 3*time.Second)
	h.Wait()
}

func TestSupervisorConcurrentStops(t *testing.T) {
	s := NewSupervisor()
	var completions atomic.Int32
	h := s.Start(func(ctx context.Context, emit func(string)) int {
		<-ctx.Done()
		return StatusCancelled
	}, nil, func(int) { completions.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.RequestStop()
		}()
	}
	wg.Wait()
	h.Wait()
	assert.Equal(t, int32(1), completions.Load())
}

func TestHandleIDsAreUnique(t *testing.T) {
	s := NewSupervisor()
	worker := func(ctx context.Context, emit func(string)) int { return 0 }
	a := s.Start(worker, nil, nil)
	b := s.Start(worker, nil, nil)
	a.Wait()
	b.Wait()
	assert.NotEqual(t, a.ID(), b.ID())
}
