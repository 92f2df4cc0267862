// Package server implements the optional long-running compile server: a
// single producer/consumer job queue, workers ordering jobs by deadline
// (earliest-first), invalidation after an edit (stale queued jobs are
// dropped with an error; nothing is resubmitted), and graceful
// shutdown that lets an in-flight job run to completion.
//
// A gobreaker circuit breaker wraps each job's execution so a string of
// failing jobs trips a breaker rather than wedging the whole server; a
// weighted semaphore bounds concurrent workers.
package server

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Job is one queued compile request: a unit of work with a deadline
// used to order the queue (earliest-first) and a Run function carrying
// the actual specialize/reactive/lower/codegen/schedule/backend pipeline
// invocation, left abstract here since package server has no business
// depending on package pipeline (the dependency runs the other way: a
// driver wires pipeline.Compile into a Job.Run closure).
type Job struct {
	ID       string
	Deadline time.Time
	Run      func(ctx context.Context) (any, error)

	result chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// NewJob creates a job with a freshly minted UUID identifier and the given
// deadline and work function.
func NewJob(deadline time.Time, run func(ctx context.Context) (any, error)) *Job {
	return &Job{ID: uuid.NewString(), Deadline: deadline, Run: run, result: make(chan jobResult, 1)}
}

// jobHeap is a container/heap ordering Jobs by Deadline, earliest first.
type jobHeap []*Job

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].Deadline.Before(h[j].Deadline) }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x interface{}) { *h = append(*h, x.(*Job)) }
func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Server is the single producer/consumer compile-job queue: a
// mutex+condvar-guarded deadline-ordered heap, a bounded worker pool via a
// weighted semaphore, and a circuit breaker wrapping each job's execution
// so repeated failures stop consuming worker capacity.
type Server struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   jobHeap
	byID    map[string]*Job
	closed  bool
	wg      sync.WaitGroup
	sem     *semaphore.Weighted
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// New creates a Server with the given worker concurrency cap and logger.
func New(concurrency int64, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		byID: make(map[string]*Job),
		sem:  semaphore.NewWeighted(concurrency),
		log:  log,
	}
	s.cond = sync.NewCond(&s.mu)
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "compile-job",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return s
}

// Submit enqueues job and returns immediately; the caller awaits the
// result via Wait.
func (s *Server) Submit(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		job.result <- jobResult{err: errServerClosed}
		return
	}
	heap.Push(&s.queue, job)
	s.byID[job.ID] = job
	s.cond.Signal()
}

// Wait blocks until job completes (run to completion, or an error). It is
// safe to call concurrently with the job still queued or running.
func (s *Server) Wait(job *Job) (any, error) {
	r := <-job.result
	job.result <- r // allow a second Wait call to observe the same result
	return r.value, r.err
}

// Invalidate scans the queue under the server's mutex after a source edit
// and removes any not-yet-started job whose ID matches stale, returning
// how many were dropped.
func (s *Server) Invalidate(stale map[string]bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept jobHeap
	dropped := 0
	for _, j := range s.queue {
		if stale[j.ID] {
			delete(s.byID, j.ID)
			j.result <- jobResult{err: errInvalidated}
			dropped++
			continue
		}
		kept = append(kept, j)
	}
	s.queue = kept
	heap.Init(&s.queue)
	return dropped
}

// Run starts n worker goroutines pulling from the deadline-ordered queue
// until ctx is cancelled or Shutdown is called. Run does not block; call
// Wait on a WaitGroup of your own, or rely on Shutdown's join.
func (s *Server) Run(ctx context.Context, workers int) {
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.closed = true
		s.cond.Broadcast()
		s.mu.Unlock()
	}()
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.workerLoop(ctx)
	}
}

func (s *Server) workerLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		job := s.dequeue()
		if job == nil {
			return
		}
		s.execute(ctx, job)
	}
}

// dequeue blocks until a job is available or the server is closed with an
// empty queue (either via Shutdown or the context-cancellation listener
// started by Run).
func (s *Server) dequeue() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return nil
	}
	job := heap.Pop(&s.queue).(*Job)
	delete(s.byID, job.ID)
	return job
}

func (s *Server) execute(ctx context.Context, job *Job) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		job.result <- jobResult{err: err}
		return
	}
	defer s.sem.Release(1)

	s.log.Info("compile job starting", zap.String("job_id", job.ID))
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return job.Run(ctx)
	})
	if err != nil {
		s.log.Warn("compile job failed", zap.String("job_id", job.ID), zap.Error(err))
	} else {
		s.log.Info("compile job finished", zap.String("job_id", job.ID))
	}
	job.result <- jobResult{value: out, err: err}
}

// Shutdown stops accepting new jobs and joins every worker goroutine,
// letting any job already running (inside execute) run to completion.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}

type serverError string

func (e serverError) Error() string { return string(e) }

const (
	errServerClosed = serverError("server: closed")
	errInvalidated  = serverError("server: job invalidated")
)
