package registration

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockRegistrar simulates the external event system, including its latency
type MockRegistrar struct {
	mu         sync.Mutex
	minLatency time.Duration
	maxLatency time.Duration
	err        error
	rejectMsg  string
	calls      []RegisterParticipantInput
}

// NewMockRegistrar creates a registrar that answers after a random delay in
// [minLatency, maxLatency]
func NewMockRegistrar(minLatency, maxLatency time.Duration) *MockRegistrar {
	return &MockRegistrar{minLatency: minLatency, maxLatency: maxLatency}
}

func (m *MockRegistrar) Register(ctx context.Context, input RegisterParticipantInput) (RegisterParticipantOutput, error) {
	m.mu.Lock()
	m.calls = append(m.calls, input)
	err, rejectMsg := m.err, m.rejectMsg
	delay := m.minLatency
	if span := m.maxLatency - m.minLatency; span > 0 {
		delay += time.Duration(rand.Int64N(int64(span)))
	}
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return RegisterParticipantOutput{}, ctx.Err()
		}
	}

	if err != nil {
		return RegisterParticipantOutput{}, err
	}
	if rejectMsg != "" {
		return RegisterParticipantOutput{Success: false, ErrorMessage: rejectMsg}, nil
	}
	return RegisterParticipantOutput{Success: true, ExternalID: uuid.NewString()}, nil
}

// FailWith makes every following call return err. nil restores success.
func (m *MockRegistrar) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Reject makes every following call answer success=false with msg.
func (m *MockRegistrar) Reject(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectMsg = msg
}

// Calls returns the inputs received so far.
func (m *MockRegistrar) Calls() []RegisterParticipantInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RegisterParticipantInput(nil), m.calls...)
}
