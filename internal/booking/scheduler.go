package booking

import (
	"sync"
	"time"
)

// Scheduler keeps one cancellable expiry timer per active hold, keyed by
// public booking id. Timers do not survive a restart; the sweep worker picks
// up whatever they miss.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

func (s *Scheduler) Schedule(bookingID string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[bookingID]; ok {
		t.Stop()
	}
	s.timers[bookingID] = time.AfterFunc(d, func() {
		s.Cancel(bookingID)
		fn()
	})
}

func (s *Scheduler) Cancel(bookingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[bookingID]; ok {
		t.Stop()
		delete(s.timers, bookingID)
	}
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
