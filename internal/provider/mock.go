package provider

import (
	"context"
	"sync"
)

// MockTransport is a scripted transport for tests. Each call consumes the
// next entry of Script; when the script runs out the last entry repeats.
type MockTransport struct {
	ProviderName string
	Script       []MockCall

	mu    sync.Mutex
	calls int
}

// MockCall is one scripted response.
type MockCall struct {
	Completion *Completion
	Err        error
}

// Provider returns the configured provider name.
func (m *MockTransport) Provider() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Complete returns the next scripted result.
func (m *MockTransport) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.mu.Unlock()

	if len(m.Script) == 0 {
		return &Completion{Content: "", Model: req.Model}, nil
	}
	if idx >= len(m.Script) {
		idx = len(m.Script) - 1
	}

	call := m.Script[idx]
	if call.Err != nil {
		return nil, call.Err
	}

	completion := *call.Completion
	if completion.Model == "" {
		completion.Model = req.Model
	}
	return &completion, nil
}

// Calls reports how many times Complete was invoked.
func (m *MockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
