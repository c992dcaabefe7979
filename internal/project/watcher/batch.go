package watcher

import (
	"context"
	"sort"
	"time"
)

// DefaultBatchDelay is the quiet period that ends a batch.
const DefaultBatchDelay = 150 * time.Millisecond

// BatchHandler receives coalesced events, one per path, sorted by path.
type BatchHandler func(events []Event)

// Batcher coalesces events from a Watcher. A batch is delivered once no new
// event arrived for the configured delay.
type Batcher struct {
	delay   time.Duration
	handle  BatchHandler
	onError func(error)
}

// NewBatcher creates a batcher. A non-positive delay uses DefaultBatchDelay.
func NewBatcher(delay time.Duration, handle BatchHandler, onError func(error)) *Batcher {
	if delay <= 0 {
		delay = DefaultBatchDelay
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Batcher{delay: delay, handle: handle, onError: onError}
}

// Run consumes w until ctx is done or w's channels close. A pending batch
// is flushed when the event channel closes but dropped on cancellation.
func (b *Batcher) Run(ctx context.Context, w Watcher) {
	pending := make(map[string]Event)
	timer := time.NewTimer(b.delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	events := w.Events()
	errs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				b.flush(pending)
				return
			}
			if prev, ok := pending[ev.Path]; ok {
				ev.Op |= prev.Op
			}
			pending[ev.Path] = ev
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(b.delay)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			b.onError(err)

		case <-timer.C:
			b.flush(pending)
			pending = make(map[string]Event)
		}
	}
}

func (b *Batcher) flush(pending map[string]Event) {
	if len(pending) == 0 {
		return
	}
	batch := make([]Event, 0, len(pending))
	for _, ev := range pending {
		batch = append(batch, ev)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	b.handle(batch)
}
