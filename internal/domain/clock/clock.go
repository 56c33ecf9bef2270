package clock

import (
	"sync"
	"time"
)

// Clock interface for time operations (supports testing)
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using actual system time, always in UTC
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// MockClock implements Clock for testing. Safe for concurrent use.
type MockClock struct {
	mu          sync.Mutex
	CurrentTime time.Time
}

// NewMockClock returns a MockClock pinned to t
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{CurrentTime: t.UTC()}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CurrentTime
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CurrentTime = m.CurrentTime.Add(d)
}

func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CurrentTime = t.UTC()
}
