package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                  sync.Mutex
	resultsSubmitted    int
	integrityViolations int
	structuralDefects   int
	submitDurations     []float64
	notificationsSent   map[string]int
	notificationsFailed map[string]int
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		notificationsSent:   make(map[string]int),
		notificationsFailed: make(map[string]int),
	}
}

func (m *Mock) IncResultsSubmitted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resultsSubmitted++
}

func (m *Mock) IncIntegrityViolations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrityViolations++
}

func (m *Mock) IncStructuralDefects() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structuralDefects++
}

func (m *Mock) ObserveSubmitDuration(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitDurations = append(m.submitDurations, duration)
}

func (m *Mock) IncNotificationsSent(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationsSent[channel]++
}

func (m *Mock) IncNotificationsFailed(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationsFailed[channel]++
}

func (m *Mock) ResultsSubmitted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resultsSubmitted
}

func (m *Mock) IntegrityViolations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.integrityViolations
}

func (m *Mock) StructuralDefects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.structuralDefects
}

func (m *Mock) SubmitDurations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submitDurations)
}

func (m *Mock) NotificationsSent(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notificationsSent[channel]
}

func (m *Mock) NotificationsFailed(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notificationsFailed[channel]
}
