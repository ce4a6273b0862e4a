// Package channel wraps a Go channel with a non-blocking send that is safe
// to call concurrently with Close.
package channel

import (
	"errors"
	"sync"
)

var (
	ErrClosed = errors.New("channel closed")
	ErrFull   = errors.New("channel full")
)

// Buffered is a bounded FIFO backed by a buffered channel.
type Buffered[T any] struct {
	mu     sync.RWMutex
	ch     chan T
	closed bool
}

// NewBuffered creates a new buffered channel with the given size
func NewBuffered[T any](size int) *Buffered[T] {
	return &Buffered[T]{ch: make(chan T, size)}
}

// Offer enqueues v without blocking.
func (b *Buffered[T]) Offer(v T) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.ch <- v:
		return nil
	default:
		return ErrFull
	}
}

// Receive returns the receive-only channel. It is closed by Close once the
// buffered values are drained.
func (b *Buffered[T]) Receive() <-chan T {
	return b.ch
}

// Len returns the number of items currently in the buffer
func (b *Buffered[T]) Len() int {
	return len(b.ch)
}

// Cap returns the buffer size
func (b *Buffered[T]) Cap() int {
	return cap(b.ch)
}

// Close stops further offers and reports whether this call closed the
// channel.
func (b *Buffered[T]) Close() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.closed = true
	close(b.ch)
	return true
}
