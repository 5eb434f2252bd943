package store

import (
	"context"
	"fmt"
	"sync"
)

// Serializer runs submitted operations one at a time in submission order.
//
// Each Serializer owns a FIFO queue and a draining flag. The first submission
// that finds the queue idle starts a drain goroutine, which pops and runs jobs
// until the queue is empty. A job's error or panic is returned to that job's
// caller only; later jobs still run.
//
// A job must not submit to the Serializer that is running it: it would wait on
// itself forever.
type Serializer struct {
	mu       sync.Mutex
	queue    []*job
	draining bool
}

type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Do enqueues fn and blocks until it has run. A ctx that is already done is
// rejected without enqueueing; once enqueued, fn always runs to completion.
func (s *Serializer) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j := &job{ctx: context.WithoutCancel(ctx), fn: fn, done: make(chan error, 1)}

	s.mu.Lock()
	s.queue = append(s.queue, j)
	start := !s.draining
	if start {
		s.draining = true
	}
	s.mu.Unlock()

	if start {
		go s.drain()
	}
	return <-j.done
}

// Pending returns the number of queued jobs that have not started yet.
func (s *Serializer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Serializer) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		j := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		j.done <- j.run()
	}
}

func (j *job) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("serialized operation panicked: %v", r)
		}
	}()
	return j.fn(j.ctx)
}
