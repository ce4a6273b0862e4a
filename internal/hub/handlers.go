package hub

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/caleywoods/wayfindr/internal/dispatcher"
	"github.com/caleywoods/wayfindr/internal/transport"
	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/caleywoods/wayfindr/pkg/streaming"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func (h *Hub) handleJoin(e dispatcher.Event) (any, error) {
	id, conn, err := parseConnEvent(e)
	if err != nil {
		return nil, err
	}
	p, ok := h.peer(id)
	if !ok || p.conn != conn {
		return nil, nil
	}

	shared := h.reg.Shared()
	env, err := streaming.EncodeSync(shared)
	if err != nil {
		return nil, err
	}
	if err := p.sender.Send(env); err != nil {
		h.logger.Warn("Sync send failed", "player", id, "error", err)
		return nil, err
	}
	h.logger.Info("Peer joined", "player", id, "shared", len(shared), "peers", h.Peers())
	return nil, nil
}

func (h *Hub) handleLeave(e dispatcher.Event) (any, error) {
	id, conn, err := parseConnEvent(e)
	if err != nil {
		return nil, err
	}
	if !h.removePeer(id, conn) {
		h.logger.Debug("Stale leave ignored", "player", id)
		return nil, nil
	}
	h.logger.Info("Peer left", "player", id, "peers", h.Peers())
	return nil, nil
}

func parseConnEvent(e dispatcher.Event) (uuid.UUID, transport.ConnID, error) {
	id, err := uuid.Parse(e.Source)
	if err != nil {
		return uuid.Nil, 0, err
	}
	if len(e.Args) != 1 {
		return uuid.Nil, 0, fmt.Errorf("missing connection id for %s", id)
	}
	conn, err := strconv.ParseUint(e.Args[0], 10, 64)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("bad connection id for %s: %w", id, err)
	}
	return id, transport.ConnID(conn), nil
}

// handleAdd stores the waypoint as shared and owned by the sender, then
// broadcasts it. Re-adding an existing id counts as an update.
func (h *Hub) handleAdd(e dispatcher.Event) (any, error) {
	player, w, err := h.decodeWaypoint(e)
	if err != nil {
		return nil, err
	}
	if existing, ok := h.reg.GetByID(w.ID); ok && !h.permitted(existing, player) {
		return nil, h.reject(e, player, w.ID, ReasonNotPermitted)
	}

	w.Owner = &player
	w.IsShared = true
	stored := h.reg.AddWaypoint(w)

	env, err := streaming.EncodeAdd(stored)
	if err != nil {
		return nil, err
	}
	h.broadcast(env)
	h.accept(e, player, stored.ID)
	return nil, nil
}

// handleUpdate applies a change from the owner or an operator. Ownership
// and the shared flag stay as stored; unsharing is a delete.
func (h *Hub) handleUpdate(e dispatcher.Event) (any, error) {
	player, w, err := h.decodeWaypoint(e)
	if err != nil {
		return nil, err
	}
	existing, ok := h.reg.GetByID(w.ID)
	if !ok {
		return nil, h.reject(e, player, w.ID, ReasonUnknown)
	}
	if !h.permitted(existing, player) {
		return nil, h.reject(e, player, w.ID, ReasonNotPermitted)
	}

	w.Owner = existing.Owner
	w.IsShared = true
	h.reg.Update(w)

	env, err := streaming.EncodeUpdate(w)
	if err != nil {
		return nil, err
	}
	h.broadcast(env)
	h.accept(e, player, w.ID)
	return nil, nil
}

func (h *Hub) handleDelete(e dispatcher.Event) (any, error) {
	player, err := uuid.Parse(e.Source)
	if err != nil {
		return nil, err
	}
	id, err := streaming.DecodeID(streaming.Envelope{Type: e.Command, Payload: e.Payload})
	if err != nil {
		return nil, h.reject(e, player, uuid.Nil, ReasonDecode)
	}
	existing, ok := h.reg.GetByID(id)
	if !ok {
		return nil, h.reject(e, player, id, ReasonUnknown)
	}
	if !h.permitted(existing, player) {
		return nil, h.reject(e, player, id, ReasonNotPermitted)
	}

	h.reg.Remove(id.String())
	h.broadcast(streaming.EncodeDelete(id))
	h.accept(e, player, id)
	return nil, nil
}

// handleUnsupported drops message kinds only the server sends.
func (h *Hub) handleUnsupported(e dispatcher.Event) (any, error) {
	player, err := uuid.Parse(e.Source)
	if err != nil {
		return nil, err
	}
	return nil, h.reject(e, player, uuid.Nil, ReasonUnsupported)
}

func (h *Hub) decodeWaypoint(e dispatcher.Event) (uuid.UUID, core.Waypoint, error) {
	player, err := uuid.Parse(e.Source)
	if err != nil {
		return uuid.Nil, core.Waypoint{}, err
	}
	w, err := streaming.DecodeWaypoint(streaming.Envelope{Type: e.Command, Payload: e.Payload})
	if err != nil {
		h.logger.Debug("Undecodable payload", "player", player, "type", e.Command, "error", err)
		return player, core.Waypoint{}, h.reject(e, player, uuid.Nil, ReasonDecode)
	}
	return player, w, nil
}

func (h *Hub) accept(e dispatcher.Event, player, id uuid.UUID) {
	h.applied.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", e.Command)))
	h.logger.Debug("Applied", "player", player, "type", e.Command, "id", id)
	h.record(Outcome{Type: e.Command, Player: player, ID: id, Applied: true, Time: e.Timestamp})
}

// reject logs and counts a dropped message and, when enabled, tells the
// sender why.
func (h *Hub) reject(e dispatcher.Event, player, id uuid.UUID, reason string) error {
	h.rejected.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("type", e.Command),
		attribute.String("reason", reason),
	))
	h.logger.Warn("Rejected", "player", player, "type", e.Command, "id", id, "reason", reason)
	h.record(Outcome{Type: e.Command, Player: player, ID: id, Reason: reason, Time: e.Timestamp})

	if h.notify {
		if p, ok := h.peer(player); ok {
			notice := streaming.RejectPayload{For: e.Command, Reason: reason}
			if id != uuid.Nil {
				notice.ID = id.String()
			}
			env, err := streaming.EncodeReject(notice)
			if err == nil {
				err = p.sender.Send(env)
			}
			if err != nil {
				h.logger.Warn("Reject notice failed", "player", player, "error", err)
			}
		}
	}
	return errRejected
}

func (h *Hub) record(o Outcome) {
	if h.recorder == nil {
		return
	}
	if o.Time.IsZero() {
		o.Time = time.Now()
	}
	h.recorder.Record(o)
}
