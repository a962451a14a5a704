package canbus

import (
	"errors"
	"sync"
)

// ErrNoFrame is returned by TryRecv when no frame is currently queued.
var ErrNoFrame = errors.New("canbus: no frame available")

// Transport is the narrow interface the responder uses to move CAN
// frames. Real hardware, SocketCAN sockets, and slcan-over-serial
// adapters all satisfy it the same way a mock does in tests.
type Transport interface {
	Send(f Frame) error
	TryRecv() (Frame, error)
	Close() error
}

// MockTransport is an in-memory Transport for unit and scenario tests. It
// is not a stand-in for real hardware timing; it exists purely to drive
// the dispatcher and ISO-TP layers without a bus.
type MockTransport struct {
	mu     sync.Mutex
	inbox  []Frame
	sent   []Frame
	closed bool
}

// NewMockTransport returns an empty MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Send records f as sent. Tests inspect it via Sent.
func (m *MockTransport) Send(f Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("canbus: transport closed")
	}
	m.sent = append(m.sent, f)
	return nil
}

// TryRecv pops the oldest queued inbound frame, or ErrNoFrame if empty.
func (m *MockTransport) TryRecv() (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inbox) == 0 {
		return Frame{}, ErrNoFrame
	}
	f := m.inbox[0]
	m.inbox = m.inbox[1:]
	return f, nil
}

// Close marks the transport closed; further Sends fail.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Inject queues f to be returned by a future TryRecv, simulating an
// inbound frame arriving on the bus.
func (m *MockTransport) Inject(f Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = append(m.inbox, f)
}

// Sent returns a copy of every frame handed to Send so far.
func (m *MockTransport) Sent() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Frame, len(m.sent))
	copy(out, m.sent)
	return out
}
