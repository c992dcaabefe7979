package editor

import (
	"sync"
	"time"
)

// Debouncer groups rapid calls per key into one callback after a quiet
// period. Callbacks for different keys run independently; a callback for a
// key never runs concurrently with itself.
type Debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	callback func(key string)
	keys     map[string]*debounceKey
	closed   bool
}

type debounceKey struct {
	timer   *time.Timer
	seq     uint64 // detects stale timer callbacks
	running sync.Mutex
}

// NewDebouncer creates a debouncer calling callback with the key after no
// call for that key has been made for delay.
func NewDebouncer(delay time.Duration, callback func(key string)) *Debouncer {
	return &Debouncer{
		delay:    delay,
		callback: callback,
		keys:     make(map[string]*debounceKey),
	}
}

// Call schedules the callback for key, restarting its quiet period.
func (d *Debouncer) Call(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	k := d.keys[key]
	if k == nil {
		k = &debounceKey{}
		d.keys[key] = k
	}
	k.seq++
	seq := k.seq
	if k.timer != nil {
		k.timer.Stop()
	}
	k.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.closed || k.seq != seq {
			d.mu.Unlock()
			return
		}
		k.timer = nil
		d.mu.Unlock()

		k.running.Lock()
		defer k.running.Unlock()
		d.callback(key)
	})
}

// Cancel drops a pending call for key.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if k := d.keys[key]; k != nil {
		if k.timer != nil {
			k.timer.Stop()
		}
		k.seq++
		delete(d.keys, key)
	}
}

// IsPending reports whether a call for key is scheduled.
func (d *Debouncer) IsPending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := d.keys[key]
	return k != nil && k.timer != nil
}

// Stop cancels every pending call. Later calls are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for key, k := range d.keys {
		if k.timer != nil {
			k.timer.Stop()
		}
		delete(d.keys, key)
	}
}
