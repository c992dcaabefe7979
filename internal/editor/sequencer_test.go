package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerOrders(t *testing.T) {
	s := newSequencer()
	ctx := context.Background()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for _, n := range []int{3, 1, 2, 0} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, s.wait(ctx, "edit:a", n))
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			s.done("edit:a", n)
		}()
	}
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestSequencerStale(t *testing.T) {
	s := newSequencer()
	require.NoError(t, s.wait(context.Background(), "edit:a", 0))
	s.done("edit:a", 0)

	err := s.wait(context.Background(), "edit:a", 0)
	assert.ErrorIs(t, err, ErrStaleEdit)
}

func TestSequencerIndependentContents(t *testing.T) {
	s := newSequencer()
	s.done("edit:a", 0)
	s.done("edit:a", 1)

	require.NoError(t, s.wait(context.Background(), "edit:b", 0))
	require.NoError(t, s.wait(context.Background(), "edit:a", 2))
}

func TestSequencerReset(t *testing.T) {
	s := newSequencer()
	s.done("edit:a", 0)
	s.done("edit:a", 1)
	s.reset("edit:a")
	require.NoError(t, s.wait(context.Background(), "edit:a", 0))
}

func TestSequencerWaitCanceled(t *testing.T) {
	s := newSequencer()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.wait(ctx, "edit:a", 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
