package editor

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/dshills/quill/internal/tracking"
)

// Outbound message types.
const (
	MessageState     = "state"
	MessageDiff      = "diff"
	MessageContent   = "content"
	MessageHighlight = "highlight"
	MessageError     = "error"
)

// Message is sent to the client.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Sink receives messages for the client.
type Sink interface {
	Send(msg Message) error
}

// Mutator computes the next state from s. It may run more than once per
// transition and must not have side effects. Returning s unchanged, or a
// nil state, commits nothing.
type Mutator func(s *EditorState) (*EditorState, tracking.Diff, error)

// CommitHook runs after a transition committed, outside the retry loop.
type CommitHook func(prev, next *EditorState)

// Machine holds the editor state and linearizes transitions with
// compare-and-swap. Diffs reach the sink in commit order.
type Machine struct {
	state   atomic.Pointer[EditorState]
	log     *logrus.Entry
	retries atomic.Uint64

	hookMu sync.RWMutex
	hooks  []CommitHook

	outMu   sync.Mutex
	sink    Sink
	next    uint64
	skip    uint64
	pending map[uint64]tracking.Diff
}

// NewMachine creates a machine in the empty state.
func NewMachine(log *logrus.Entry) *Machine {
	m := &Machine{
		log:     log,
		next:    1,
		pending: make(map[uint64]tracking.Diff),
	}
	m.state.Store(emptyState())
	return m
}

// State returns the current state.
func (m *Machine) State() *EditorState {
	return m.state.Load()
}

// Retries returns how often a transition was recomputed after losing a
// race.
func (m *Machine) Retries() uint64 {
	return m.retries.Load()
}

// OnCommit registers a hook that runs after every committed transition.
func (m *Machine) OnCommit(hook CommitHook) {
	m.hookMu.Lock()
	m.hooks = append(m.hooks, hook)
	m.hookMu.Unlock()
}

// Update applies mutator until it commits against the current state. A
// mutator error aborts the transition and leaves the state unchanged.
func (m *Machine) Update(mutator Mutator) (*EditorState, error) {
	for {
		cur := m.state.Load()
		next, diff, err := mutator(cur)
		if err != nil {
			return cur, err
		}
		if next == nil || next == cur {
			return cur, nil
		}
		next.Revision = cur.Revision + 1
		if !m.state.CompareAndSwap(cur, next) {
			m.retries.Add(1)
			continue
		}

		m.publish(next.Revision, tracking.Cull(diff))

		m.hookMu.RLock()
		hooks := m.hooks
		m.hookMu.RUnlock()
		for _, hook := range hooks {
			hook(cur, next)
		}
		return next, nil
	}
}

// publish queues the diff of revision rev and flushes every diff that is
// next in commit order.
func (m *Machine) publish(rev uint64, diff tracking.Diff) {
	m.outMu.Lock()
	defer m.outMu.Unlock()

	m.pending[rev] = diff
	for {
		d, ok := m.pending[m.next]
		if !ok {
			return
		}
		delete(m.pending, m.next)
		if m.next > m.skip && d != nil && m.sink != nil {
			if err := m.sink.Send(Message{Type: MessageDiff, Payload: d}); err != nil {
				m.log.WithError(err).Warn("failed to send diff")
			}
		}
		m.next++
	}
}

// Connect makes sink the receiver of state messages and sends it the full
// state. Diffs of transitions already contained in that state are not
// sent.
func (m *Machine) Connect(sink Sink) error {
	m.outMu.Lock()
	defer m.outMu.Unlock()

	s := m.state.Load()
	m.sink = sink
	m.skip = s.Revision
	return sink.Send(Message{Type: MessageState, Payload: s})
}

// Disconnect detaches sink if it is the connected one.
func (m *Machine) Disconnect(sink Sink) {
	m.outMu.Lock()
	defer m.outMu.Unlock()
	if m.sink == sink {
		m.sink = nil
	}
}

// Send delivers a message that is not a state transition, such as content
// or highlight results.
func (m *Machine) Send(msg Message) {
	m.outMu.Lock()
	defer m.outMu.Unlock()
	if m.sink == nil {
		return
	}
	if err := m.sink.Send(msg); err != nil {
		m.log.WithError(err).WithField("type", msg.Type).Warn("failed to send message")
	}
}
