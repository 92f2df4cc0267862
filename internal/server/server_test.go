package server

import (
	"context"
	"testing"
	"time"
)

func TestSubmitAndRunToCompletion(t *testing.T) {
	s := New(2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Run(ctx, 2)

	job := NewJob(time.Now(), func(ctx context.Context) (any, error) {
		return 42, nil
	})
	s.Submit(job)

	val, err := s.Wait(job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val.(int) != 42 {
		t.Fatalf("expected 42, got %v", val)
	}
	s.Shutdown()
}

func TestDeadlineOrdering(t *testing.T) {
	s := New(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var order []string
	done := make(chan struct{}, 2)
	mkJob := func(name string, dl time.Time) *Job {
		return NewJob(dl, func(ctx context.Context) (any, error) {
			order = append(order, name)
			done <- struct{}{}
			return name, nil
		})
	}

	now := time.Now()
	late := mkJob("late", now.Add(time.Hour))
	early := mkJob("early", now)

	// Submit before starting workers so both are queued at once and the
	// heap's deadline order, not submission order, decides who runs first.
	s.Submit(late)
	s.Submit(early)
	s.Run(ctx, 1)

	<-done
	<-done
	s.Shutdown()

	if len(order) != 2 || order[0] != "early" {
		t.Fatalf("expected earliest-deadline-first order, got %v", order)
	}
}

func TestInvalidateDropsQueuedJob(t *testing.T) {
	s := New(1, nil)
	job := NewJob(time.Now(), func(ctx context.Context) (any, error) { return nil, nil })
	s.Submit(job)

	dropped := s.Invalidate(map[string]bool{job.ID: true})
	if dropped != 1 {
		t.Fatalf("expected 1 job dropped, got %d", dropped)
	}
	_, err := s.Wait(job)
	if err == nil {
		t.Fatalf("expected invalidated job to report an error")
	}
}
