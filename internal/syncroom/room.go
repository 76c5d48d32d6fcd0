// Package syncroom implements the relay-side half of the sync protocol
// (spec §4.9): a per-workspace in-memory Room holding the canonical
// WorkspaceCrdt, a set of subscribed Clients, and the apply/rebroadcast
// logic that drives spec §4.8's handshake from the relay's side.
//
// Grounded on the teacher's websocket hub
// (internal/server/handlers/ws/ws_hub.go's register/broadcast/refcount
// shape) generalized from one hub serving every connection to one Room
// per workspace, since this domain's CRDT state is workspace-scoped
// rather than global.
package syncroom

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/diaryxhq/diaryx/internal/crdt"
	"github.com/diaryxhq/diaryx/internal/wireproto"
)

// Room holds one workspace's canonical WorkspaceCrdt and its subscribed
// clients. A single writer lock guards every mutation of the CRDT;
// state-vector/diff encoding may proceed under the shared read side of
// the same lock (spec §5).
type Room struct {
	ID string

	mu      sync.RWMutex
	crdt    *crdt.WorkspaceCrdt
	clients map[string]*Client

	onEmpty func(id string, crdt *crdt.WorkspaceCrdt)
}

// NewRoom wraps an already-loaded WorkspaceCrdt as a Room. onEmpty, if
// non-nil, is called (with the room's lock not held) once refcount
// returns to zero, so the caller can flush state to storage and
// optionally evict the room from a registry.
func NewRoom(id string, state *crdt.WorkspaceCrdt, onEmpty func(id string, crdt *crdt.WorkspaceCrdt)) *Room {
	return &Room{
		ID:      id,
		crdt:    state,
		clients: make(map[string]*Client),
		onEmpty: onEmpty,
	}
}

// Subscribe registers client and starts its read/write loops. The peer's
// assigned connection id is surfaced via client.ID.
func (r *Room) Subscribe(ctx context.Context, client *Client) {
	r.mu.Lock()
	r.clients[client.ID] = client
	n := len(r.clients)
	r.mu.Unlock()

	slog.Debug("syncroom subscribed", "room", r.ID, "peer", client.ID, "clients", n)
	client.Start(ctx, r)
}

// Unsubscribe removes client from the room. When the last client leaves,
// onEmpty fires with the final CRDT state.
func (r *Room) Unsubscribe(client *Client) {
	r.mu.Lock()
	delete(r.clients, client.ID)
	empty := len(r.clients) == 0
	r.mu.Unlock()

	slog.Debug("syncroom unsubscribed", "room", r.ID, "peer", client.ID, "empty", empty)
	if empty && r.onEmpty != nil {
		r.onEmpty(r.ID, r.crdt)
	}
}

// ClientCount returns the number of currently subscribed clients.
func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// HandleFrame dispatches an inbound frame from client per spec §4.8's
// handshake: SyncStep1 gets a SyncStep2+SyncStep1 reply; SyncStep2 and
// Update are applied to the canonical CRDT and, if they changed it,
// rebroadcast to every other subscriber.
func (r *Room) HandleFrame(from *Client, f wireproto.Frame) error {
	switch f.Type {
	case wireproto.MsgSyncStep1:
		return r.handleSyncStep1(from, f.Payload)
	case wireproto.MsgSyncStep2, wireproto.MsgUpdate:
		return r.handleUpdate(from, f.Payload)
	default:
		return fmt.Errorf("syncroom: unknown frame type %v", f.Type)
	}
}

func (r *Room) handleSyncStep1(from *Client, payload []byte) error {
	peerSV, err := wireproto.DecodeStateVector(payload)
	if err != nil {
		return err
	}

	r.mu.RLock()
	diff, err := r.crdt.EncodeDiff(peerSV)
	if err != nil {
		r.mu.RUnlock()
		return fmt.Errorf("syncroom: encode diff: %w", err)
	}
	ourSV, err := wireproto.EncodeStateVector(r.crdt.EncodeStateVector())
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("syncroom: encode state vector: %w", err)
	}

	from.Send(wireproto.Frame{Type: wireproto.MsgSyncStep2, Payload: diff})
	from.Send(wireproto.Frame{Type: wireproto.MsgSyncStep1, Payload: ourSV})
	return nil
}

func (r *Room) handleUpdate(from *Client, payload []byte) error {
	r.mu.Lock()
	updateID, err := r.crdt.ApplyUpdate(payload)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("syncroom: apply update: %w", err)
	}
	if updateID == nil {
		return nil // no-op: nothing new to rebroadcast
	}
	r.broadcast(wireproto.Frame{Type: wireproto.MsgUpdate, Payload: payload}, from)
	return nil
}

// broadcast fans f out to every subscriber except except (the originator
// never receives its own bytes back, per spec §4.8). A client whose send
// queue is full is resynced with a full-state update instead of having
// the broadcast silently dropped.
func (r *Room) broadcast(f wireproto.Frame, except *Client) {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		if except != nil && id == except.ID {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if !c.Send(f) {
			r.resync(c)
		}
	}
}

// resync sends a full-state SyncStep2 to a client that fell behind the
// broadcast ring (its send queue was full).
func (r *Room) resync(c *Client) {
	r.mu.RLock()
	full, err := r.crdt.EncodeStateAsUpdate()
	r.mu.RUnlock()
	if err != nil {
		slog.Warn("syncroom resync encode failed", "room", r.ID, "peer", c.ID, "error", err)
		return
	}
	c.SendBlocking(wireproto.Frame{Type: wireproto.MsgSyncStep2, Payload: full})
}
