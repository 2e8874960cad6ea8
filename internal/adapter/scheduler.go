package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrSchedulerClosed = errors.New("scheduler closed")

// Scheduler runs delayed tasks on a clock. Tasks still pending at Shutdown
// never run.
type Scheduler struct {
	clock clockwork.Clock

	mu      sync.Mutex
	seq     uint64
	timers  map[uint64]clockwork.Timer
	closed  bool
	running sync.WaitGroup
}

func NewScheduler(clock clockwork.Clock) *Scheduler {
	return &Scheduler{clock: clock, timers: make(map[uint64]clockwork.Timer)}
}

func (s *Scheduler) Schedule(delay time.Duration, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSchedulerClosed
	}

	s.seq++
	id := s.seq
	s.timers[id] = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if _, ok := s.timers[id]; !ok || s.closed {
			s.mu.Unlock()
			return
		}
		delete(s.timers, id)
		s.running.Add(1)
		s.mu.Unlock()

		defer s.running.Done()
		fn()
	})
	return nil
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Shutdown cancels pending tasks and waits for running ones until ctx is done.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Shutdown: %w", ctx.Err())
	}
}
