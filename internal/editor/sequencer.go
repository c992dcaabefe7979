package editor

import (
	"context"
	"fmt"
	"sync"
)

// sequencer orders edits per content id. Edit n of a content runs only
// after edits 0..n-1 finished. Waiters block on a broadcast channel that is
// replaced every time a sequence advances.
type sequencer struct {
	mu      sync.Mutex
	next    map[string]int
	changed chan struct{}
}

func newSequencer() *sequencer {
	return &sequencer{
		next:    make(map[string]int),
		changed: make(chan struct{}),
	}
}

// wait blocks until n is the next sequence number of cid. A number that
// was already used fails with ErrStaleEdit.
func (s *sequencer) wait(ctx context.Context, cid string, n int) error {
	for {
		s.mu.Lock()
		expected := s.next[cid]
		ch := s.changed
		s.mu.Unlock()

		switch {
		case n == expected:
			return nil
		case n < expected:
			return fmt.Errorf("%w: %s update %d, expected %d", ErrStaleEdit, cid, n, expected)
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// done marks n of cid as applied and wakes the waiters.
func (s *sequencer) done(cid string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n+1 > s.next[cid] {
		s.next[cid] = n + 1
	}
	s.broadcastLocked()
}

// reset restarts the sequence of cid at 0.
func (s *sequencer) reset(cid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.next, cid)
	s.broadcastLocked()
}

func (s *sequencer) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
