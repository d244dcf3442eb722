package narrative

import (
	"context"
	"sync"
)

// MockCompleter is a deterministic Completer for testing.
// It streams Fragments in order and records every conversation it receives.
type MockCompleter struct {
	// Fragments are streamed in order by every call.
	Fragments []string

	// Error, if set, is returned by Stream instead of a channel.
	Error error

	// StreamError, if set, is delivered after all Fragments.
	StreamError error

	mu    sync.Mutex
	calls [][]Message
}

// NewMockCompleter creates a mock that streams the given fragments.
func NewMockCompleter(fragments ...string) *MockCompleter {
	return &MockCompleter{Fragments: fragments}
}

// NewMockCompleterWithError creates a mock whose Stream always fails.
func NewMockCompleterWithError(err error) *MockCompleter {
	return &MockCompleter{Error: err}
}

func (m *MockCompleter) Stream(ctx context.Context, messages []Message) (<-chan Fragment, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]Message(nil), messages...))
	m.mu.Unlock()

	if m.Error != nil {
		return nil, m.Error
	}

	out := make(chan Fragment)
	go func() {
		defer close(out)
		for _, f := range m.Fragments {
			if !send(ctx, out, Fragment{Content: f}) {
				return
			}
		}
		if m.StreamError != nil {
			send(ctx, out, Fragment{Err: m.StreamError})
		}
	}()
	return out, nil
}

// Calls returns the number of Stream invocations.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastMessages returns the conversation passed to the most recent Stream call.
func (m *MockCompleter) LastMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}
