package queue

import (
	"context"
	"sync"
)

// MemoryClient collects sent messages for tests.
type MemoryClient struct {
	mu       sync.Mutex
	messages []Message
	sendErr  error
}

// NewMemoryClient creates an empty memory client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// FailSends makes Send return err until reset with nil.
func (m *MemoryClient) FailSends(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Send records the message.
func (m *MemoryClient) Send(ctx context.Context, msg Message) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *MemoryClient) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

var _ Client = (*MemoryClient)(nil)
