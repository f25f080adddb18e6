package flowstore

import (
	"sync"
	"time"
)

// syncer coalesces rapid edits into a single write: each touch resets a
// pending timer, and when the quiet window elapses the flush callback runs
// once. The callback snapshots current state at fire time, so the write
// always reflects the latest edits rather than the state when the timer was
// first armed.
type syncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	flush    func()
}

func newSyncer(interval time.Duration, flush func()) *syncer {
	return &syncer{interval: interval, flush: flush}
}

// touch (re)arms the quiet-window timer.
func (s *syncer) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.interval, s.flush)
}

// cancel drops any pending write.
func (s *syncer) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
