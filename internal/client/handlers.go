package client

import (
	"github.com/caleywoods/wayfindr/internal/dispatcher"
	"github.com/caleywoods/wayfindr/pkg/streaming"
	"github.com/google/uuid"
)

func envelope(e dispatcher.Event) streaming.Envelope {
	return streaming.Envelope{Type: e.Command, Payload: e.Payload}
}

// handleSync keeps personal waypoints and replaces every shared one with
// the server's snapshot.
func (a *Agent) handleSync(e dispatcher.Event) (any, error) {
	incoming, err := streaming.DecodeSync(envelope(e))
	if err != nil {
		a.logger.Warn("Dropping sync", "error", err)
		return nil, err
	}
	total := a.reg.MergeShared(incoming)
	a.logger.Info("Synced shared waypoints", "shared", len(incoming), "total", total)
	return nil, nil
}

func (a *Agent) handleAdd(e dispatcher.Event) (any, error) {
	w, err := streaming.DecodeWaypoint(envelope(e))
	if err != nil {
		a.logger.Warn("Dropping add", "error", err)
		return nil, err
	}
	a.reg.AddWaypoint(w)
	return nil, nil
}

func (a *Agent) handleUpdate(e dispatcher.Event) (any, error) {
	w, err := streaming.DecodeWaypoint(envelope(e))
	if err != nil {
		a.logger.Warn("Dropping update", "error", err)
		return nil, err
	}
	if !a.reg.Update(w) {
		a.logger.Warn("Update for unknown waypoint", "id", w.ID, "name", w.Name)
	}
	return nil, nil
}

func (a *Agent) handleDelete(e dispatcher.Event) (any, error) {
	id, err := streaming.DecodeID(envelope(e))
	if err != nil {
		a.logger.Warn("Dropping delete", "error", err)
		return nil, err
	}
	found, removed := a.reg.RemoveShared(id)
	switch {
	case !found:
		a.logger.Warn("Delete for unknown waypoint", "id", id)
	case !removed:
		// An owner who unshares keeps a personal copy under the same id.
		a.logger.Debug("Keeping personal copy", "id", id)
	}
	return nil, nil
}

// handleReject logs the server's notice. A rejected share is undone so the
// local copy does not claim to be shared.
func (a *Agent) handleReject(e dispatcher.Event) (any, error) {
	notice, err := streaming.DecodeReject(envelope(e))
	if err != nil {
		a.logger.Warn("Dropping reject notice", "error", err)
		return nil, err
	}
	a.logger.Warn("Server rejected message", "for", notice.For, "id", notice.ID, "reason", notice.Reason)

	if notice.For != streaming.TypeAdd || notice.ID == "" {
		return nil, nil
	}
	id, err := uuid.Parse(notice.ID)
	if err != nil {
		return nil, nil
	}
	if w, ok := a.reg.UnshareOwned(id, a.sess.Player()); ok {
		a.logger.Info("Share undone", "name", w.Name)
	}
	return nil, nil
}
