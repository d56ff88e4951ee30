package notification

import (
	"context"
	"sync"
)

// MockNotifier records deliveries in memory
type MockNotifier struct {
	mu       sync.RWMutex
	messages []*Message
	err      error
}

// Message is a delivered notification
type Message struct {
	PhoneNumber string
	PoolNames   []string
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Notify records the message, or returns the configured failure
func (m *MockNotifier) Notify(ctx context.Context, phoneNumber string, poolNames []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.messages = append(m.messages, &Message{
		PhoneNumber: phoneNumber,
		PoolNames:   append([]string(nil), poolNames...),
	})
	return nil
}

// FailWith makes every following delivery return err. nil restores success.
func (m *MockNotifier) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// GetAllMessages returns all delivered messages in delivery order
func (m *MockNotifier) GetAllMessages() []*Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Message(nil), m.messages...)
}
