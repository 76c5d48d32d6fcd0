package syncroom

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/diaryxhq/diaryx/internal/crdt"
)

// Loader loads (or creates, if absent) the canonical WorkspaceCrdt for a
// workspace id, typically from a crdt.Storage-backed durable store.
type Loader func(ctx context.Context, workspaceID string) (*crdt.WorkspaceCrdt, error)

// Flusher persists a workspace's final CRDT state once its Room empties.
type Flusher func(ctx context.Context, workspaceID string, state *crdt.WorkspaceCrdt)

// Authenticator is the seam between transport-level auth (an HTTP
// request, a header, a token) and the relay's notion of which peer is
// connecting. Implementations range from "accept everyone" (local dev)
// to a bearer-token or mTLS check (spec is silent on the scheme; this
// interface lets callers plug in whichever theirs uses).
type Authenticator interface {
	Authenticate(r *http.Request) (peerID string, ok bool)
}

// AllowAllAuthenticator accepts every connection, assigning no fixed
// peer identity (the relay still assigns a random connection id).
type AllowAllAuthenticator struct{}

func (AllowAllAuthenticator) Authenticate(r *http.Request) (string, bool) { return "", true }

// Manager owns every currently-loaded Room, keyed by workspace id, with
// double-checked-locking load-or-create the same way
// crdt.BodyDocManager dedupes concurrent GetOrCreate calls (minus
// singleflight here, since a Room's loader result is cheap to discard if
// two callers race — the second simply joins the first's Room).
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*Room

	Auth  Authenticator
	Load  Loader
	Flush Flusher
}

// NewManager constructs a Manager. auth may be nil, defaulting to
// AllowAllAuthenticator.
func NewManager(auth Authenticator, load Loader, flush Flusher) *Manager {
	if auth == nil {
		auth = AllowAllAuthenticator{}
	}
	return &Manager{
		rooms: make(map[string]*Room),
		Auth:  auth,
		Load:  load,
		Flush: flush,
	}
}

// GetOrCreateRoom returns the Room for workspaceID, loading it via m.Load
// if it is not already resident.
func (m *Manager) GetOrCreateRoom(ctx context.Context, workspaceID string) (*Room, error) {
	m.mu.Lock()
	if room, ok := m.rooms[workspaceID]; ok {
		m.mu.Unlock()
		return room, nil
	}
	m.mu.Unlock()

	state, err := m.Load(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("syncroom: load workspace %q: %w", workspaceID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[workspaceID]; ok {
		return room, nil // another goroutine won the race
	}
	room := NewRoom(workspaceID, state, m.onRoomEmpty)
	m.rooms[workspaceID] = room
	return room, nil
}

func (m *Manager) onRoomEmpty(workspaceID string, state *crdt.WorkspaceCrdt) {
	m.mu.Lock()
	delete(m.rooms, workspaceID)
	m.mu.Unlock()

	if m.Flush != nil {
		m.Flush(context.Background(), workspaceID, state)
	}
	slog.Debug("syncroom evicted empty room", "workspace", workspaceID)
}

// RoomCount reports how many workspaces currently have a resident Room.
func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// ServeWS upgrades r to a websocket, authenticates it, resolves
// workspaceID's Room (loading it on first connect), and subscribes the
// new Client — blocking until the connection closes. Grounded on
// internal/server/handlers/ws/ws_hub.go's WebsocketHandler (accept,
// build a client, register with the hub) minus the gin dependency, since
// this relay has no other HTTP surface to share a router framework with.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request, workspaceID string) error {
	peerID, ok := m.Auth.Authenticate(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return fmt.Errorf("syncroom: authentication rejected for workspace %q", workspaceID)
	}

	room, err := m.GetOrCreateRoom(r.Context(), workspaceID)
	if err != nil {
		http.Error(w, "workspace unavailable", http.StatusInternalServerError)
		return err
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return fmt.Errorf("syncroom: websocket accept: %w", err)
	}

	client := NewClient(conn)
	if peerID != "" {
		client.ID = peerID
	}
	room.Subscribe(context.Background(), client)
	return nil
}
