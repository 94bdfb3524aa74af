package notify

import (
	"context"
	"sync"
)

// MockAdapter records sent messages for tests.
type MockAdapter struct {
	mu       sync.Mutex
	messages []string

	// Err, when set, is returned from every Send.
	Err error
}

// NewMockAdapter returns an empty mock adapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// Name identifies the adapter.
func (m *MockAdapter) Name() string { return "mock" }

// Send records the message, or fails with Err when configured.
func (m *MockAdapter) Send(_ context.Context, text string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, text)
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *MockAdapter) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.messages))
	copy(out, m.messages)
	return out
}
