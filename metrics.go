package asebalink

import "sync/atomic"

// Metrics is an interface for tracking session-level wire statistics.
// The session calls Increment* as frames cross the wire; collectors read
// back via Get*.
type Metrics interface {
	IncrementMessagesSent()
	IncrementMessagesReceived()
	IncrementBytesSent(n int64)
	IncrementBytesReceived(n int64)
	IncrementHandshakesCompleted()
	IncrementCommErrors()

	GetMessagesSent() int64
	GetMessagesReceived() int64
	GetBytesSent() int64
	GetBytesReceived() int64
	GetHandshakesCompleted() int64
	GetCommErrors() int64
}

// DefaultMetrics implements Metrics with atomic counters.
type DefaultMetrics struct {
	messagesSent        int64
	messagesReceived    int64
	bytesSent           int64
	bytesReceived       int64
	handshakesCompleted int64
	commErrors          int64
}

// NewDefaultMetrics creates a new DefaultMetrics instance.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncrementMessagesSent()     { atomic.AddInt64(&m.messagesSent, 1) }
func (m *DefaultMetrics) IncrementMessagesReceived() { atomic.AddInt64(&m.messagesReceived, 1) }
func (m *DefaultMetrics) IncrementBytesSent(n int64)     { atomic.AddInt64(&m.bytesSent, n) }
func (m *DefaultMetrics) IncrementBytesReceived(n int64) { atomic.AddInt64(&m.bytesReceived, n) }
func (m *DefaultMetrics) IncrementHandshakesCompleted()  { atomic.AddInt64(&m.handshakesCompleted, 1) }
func (m *DefaultMetrics) IncrementCommErrors()           { atomic.AddInt64(&m.commErrors, 1) }

func (m *DefaultMetrics) GetMessagesSent() int64     { return atomic.LoadInt64(&m.messagesSent) }
func (m *DefaultMetrics) GetMessagesReceived() int64 { return atomic.LoadInt64(&m.messagesReceived) }
func (m *DefaultMetrics) GetBytesSent() int64        { return atomic.LoadInt64(&m.bytesSent) }
func (m *DefaultMetrics) GetBytesReceived() int64    { return atomic.LoadInt64(&m.bytesReceived) }
func (m *DefaultMetrics) GetHandshakesCompleted() int64 {
	return atomic.LoadInt64(&m.handshakesCompleted)
}
func (m *DefaultMetrics) GetCommErrors() int64 { return atomic.LoadInt64(&m.commErrors) }
