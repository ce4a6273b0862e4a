package streaming

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/google/uuid"
)

// Message type constants matching the replication protocol.
const (
	TypeSync   = "waypoint_sync"
	TypeAdd    = "waypoint_add"
	TypeUpdate = "waypoint_update"
	TypeDelete = "waypoint_delete"
	TypeReject = "waypoint_reject"
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrMissingID   = errors.New("waypoint id missing")
	ErrColorRange  = errors.New("waypoint color out of range")
)

// Envelope wraps every message exchanged between client and server.
// Payload is itself a JSON document (or a bare id for deletes).
type Envelope struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// RejectPayload tells a client why the server dropped one of its messages.
type RejectPayload struct {
	For    string `json:"for"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// KnownType reports whether t is part of the protocol.
func KnownType(t string) bool {
	switch t {
	case TypeSync, TypeAdd, TypeUpdate, TypeDelete, TypeReject:
		return true
	}
	return false
}

// Marshal encodes an envelope into a single frame.
func Marshal(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Unmarshal decodes a frame. Frames with an unknown type are returned
// together with ErrUnknownType so callers can log and skip them.
func Unmarshal(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if !KnownType(env.Type) {
		return env, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return env, nil
}

// EncodeSync builds a full snapshot message.
func EncodeSync(list []core.Waypoint) (Envelope, error) {
	if list == nil {
		list = []core.Waypoint{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode sync: %w", err)
	}
	return Envelope{Type: TypeSync, Payload: string(data)}, nil
}

// EncodeAdd builds an add message for w.
func EncodeAdd(w core.Waypoint) (Envelope, error) {
	return encodeWaypoint(TypeAdd, w)
}

// EncodeUpdate builds an update message for w.
func EncodeUpdate(w core.Waypoint) (Envelope, error) {
	return encodeWaypoint(TypeUpdate, w)
}

// EncodeDelete builds a delete message. The payload is the bare id.
func EncodeDelete(id uuid.UUID) Envelope {
	return Envelope{Type: TypeDelete, Payload: id.String()}
}

// EncodeReject builds a rejection notice.
func EncodeReject(r RejectPayload) (Envelope, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode reject: %w", err)
	}
	return Envelope{Type: TypeReject, Payload: string(data)}, nil
}

func encodeWaypoint(msgType string, w core.Waypoint) (Envelope, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return Envelope{Type: msgType, Payload: string(data)}, nil
}

// DecodeSync returns the waypoints carried by a sync message.
func DecodeSync(env Envelope) ([]core.Waypoint, error) {
	var list []core.Waypoint
	if err := json.Unmarshal([]byte(env.Payload), &list); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	for i := range list {
		normalize(&list[i])
		if err := validate(list[i]); err != nil {
			return nil, fmt.Errorf("decode %s payload: entry %d: %w", env.Type, i, err)
		}
	}
	if list == nil {
		list = []core.Waypoint{}
	}
	return list, nil
}

// DecodeWaypoint returns the waypoint carried by an add or update message.
func DecodeWaypoint(env Envelope) (core.Waypoint, error) {
	var w core.Waypoint
	if err := json.Unmarshal([]byte(env.Payload), &w); err != nil {
		return core.Waypoint{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	if err := validate(w); err != nil {
		return core.Waypoint{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	normalize(&w)
	return w, nil
}

// DecodeID returns the id carried by a delete message.
func DecodeID(env Envelope) (uuid.UUID, error) {
	id, err := uuid.Parse(env.Payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return id, nil
}

// DecodeReject returns the rejection notice carried by env.
func DecodeReject(env Envelope) (RejectPayload, error) {
	var r RejectPayload
	if err := json.Unmarshal([]byte(env.Payload), &r); err != nil {
		return RejectPayload{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return r, nil
}

func validate(w core.Waypoint) error {
	if w.ID == uuid.Nil {
		return ErrMissingID
	}
	if w.Color > core.MaxColor {
		return fmt.Errorf("%w: %#x", ErrColorRange, uint32(w.Color))
	}
	return nil
}

func normalize(w *core.Waypoint) {
	if w.Dimension == "" {
		w.Dimension = core.DefaultDimension
	}
}
