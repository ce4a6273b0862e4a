// Package transport defines how replication envelopes move between the
// hub and client agents.
package transport

import (
	"errors"

	"github.com/caleywoods/wayfindr/pkg/streaming"
	"github.com/google/uuid"
)

var (
	ErrClosed       = errors.New("transport closed")
	ErrQueueFull    = errors.New("transport send queue full")
	ErrDisconnected = errors.New("transport disconnected")
)

// Sender enqueues one envelope for delivery. It returns an error only when
// the envelope could not be enqueued; delivery itself is not confirmed.
type Sender interface {
	Send(env streaming.Envelope) error
}

// ConnID identifies one connection of a peer. Each Join hands out a new
// one, so the Leave of a replaced connection does not drop its successor.
type ConnID uint64

// Hub is the server side of a transport. Join is called once per
// connection before any Receive for that peer, Leave once after the last,
// with the ConnID that Join returned.
type Hub interface {
	Join(peer uuid.UUID, s Sender) (ConnID, error)
	Leave(peer uuid.UUID, conn ConnID)
	Receive(peer uuid.UUID, env streaming.Envelope)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(env streaming.Envelope) error

func (f SenderFunc) Send(env streaming.Envelope) error {
	return f(env)
}
