package observability

import "sync"

// Metrics provides basic in-memory counters for the triage pipeline.
type Metrics struct {
	mu           sync.Mutex
	runCount     map[string]int64
	stepCount    map[string]int64
	notifyCount  map[string]int64
	requestCount map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		runCount:     make(map[string]int64),
		stepCount:    make(map[string]int64),
		notifyCount:  make(map[string]int64),
		requestCount: make(map[string]int64),
	}
}

// RecordRun increments the counter for completed workflow runs by outcome.
func (m *Metrics) RecordRun(event, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runCount[event+"|"+outcome]++
}

// RecordStep increments counters for step attempts.
func (m *Metrics) RecordStep(step, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepCount[step+"|"+outcome]++
}

// RecordNotification increments counters for outbound mail attempts.
func (m *Metrics) RecordNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyCount[kind+"|"+outcome]++
}

// RecordError increments error counters for HTTP requests.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[path+"|"+method+"|"+code]++
}

// Snapshot returns a copy of all counters, for the readiness endpoint and tests.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.runCount)+len(m.stepCount)+len(m.notifyCount)+len(m.requestCount))
	for k, v := range m.runCount {
		out["run|"+k] = v
	}
	for k, v := range m.stepCount {
		out["step|"+k] = v
	}
	for k, v := range m.notifyCount {
		out["notify|"+k] = v
	}
	for k, v := range m.requestCount {
		out["request|"+k] = v
	}
	return out
}
