package dispatcher

import (
	"sort"
	"sync"
	"time"
)

// Metrics collects dispatch statistics.
type Metrics struct {
	mu sync.RWMutex

	commands map[string]*CommandMetrics

	totalDispatches uint64
	totalErrors     uint64
}

// CommandMetrics holds metrics for one command name.
type CommandMetrics struct {
	Name          string        `json:"name"`
	DispatchCount uint64        `json:"dispatchCount"`
	ErrorCount    uint64        `json:"errorCount"`
	TotalDuration time.Duration `json:"totalDuration"`
	MaxDuration   time.Duration `json:"maxDuration"`
	LastDispatch  time.Time     `json:"lastDispatch"`
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		commands: make(map[string]*CommandMetrics),
	}
}

// RecordDispatch records one dispatch and its outcome.
func (m *Metrics) RecordDispatch(name string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalDispatches++
	if err != nil {
		m.totalErrors++
	}

	cm := m.commands[name]
	if cm == nil {
		cm = &CommandMetrics{Name: name}
		m.commands[name] = cm
	}
	cm.DispatchCount++
	cm.TotalDuration += duration
	cm.LastDispatch = time.Now()
	if duration > cm.MaxDuration {
		cm.MaxDuration = duration
	}
	if err != nil {
		cm.ErrorCount++
	}
}

// Totals returns the number of dispatches and failed dispatches.
func (m *Metrics) Totals() (dispatches, errors uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalDispatches, m.totalErrors
}

// Command returns a copy of the metrics for name.
func (m *Metrics) Command(name string) (CommandMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cm, ok := m.commands[name]
	if !ok {
		return CommandMetrics{}, false
	}
	return *cm, true
}

// Snapshot returns copies of all command metrics sorted by name.
func (m *Metrics) Snapshot() []CommandMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]CommandMetrics, 0, len(m.commands))
	for _, cm := range m.commands {
		out = append(out, *cm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
