package scanner

import "sync"

// Mailbox is an unbounded FIFO queue with a single consumer in mind.
// Push never blocks.
type Mailbox[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

func newMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{ready: make(chan struct{}, 1)}
}

func (m *Mailbox[T]) push(v T) {
	m.mu.Lock()
	m.items = append(m.items, v)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns everything queued so far, oldest first.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.items
	m.items = nil
	return items
}

// Ready receives a value after one or more pushes since the last receive.
// A receive does not guarantee a non-empty Drain if another goroutine drained
// in between.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.ready
}
