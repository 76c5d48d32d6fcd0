package syncroom

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/diaryxhq/diaryx/internal/utils"
	"github.com/diaryxhq/diaryx/internal/wireproto"
)

const (
	writeTimeout  = 20 * time.Second
	sendQueueSize = 256
	closeReason   = "shutdown"
)

// Client is one connected peer of a Room. Grounded on
// internal/server/handlers/ws/ws_client.go's read/write-loop split, with
// syftmsg.Message swapped for wireproto.Frame and wsjson swapped for
// wireproto's SendWS/RecvWS.
type Client struct {
	ID string

	conn   *websocket.Conn
	send   chan wireproto.Frame
	done   chan struct{}
	closer sync.Once
	wg     sync.WaitGroup
}

// NewClient wraps an accepted websocket connection. The peer_id
// (spec §4.8) is assigned here, on connect.
func NewClient(conn *websocket.Conn) *Client {
	id, err := utils.RandBase34(8)
	if err != nil {
		id = "peer"
	}
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan wireproto.Frame, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Start launches the read and write loops and blocks until both exit.
// room.Unsubscribe is called once the connection closes for any reason.
func (c *Client) Start(ctx context.Context, room *Room) {
	c.wg.Add(2)
	go c.writeLoop(ctx)
	go c.readLoop(ctx, room)
	c.wg.Wait()
	room.Unsubscribe(c)
}

// Send enqueues f for delivery without blocking. Returns false if the
// send queue was full, in which case the caller should treat this
// client as having fallen behind.
func (c *Client) Send(f wireproto.Frame) bool {
	select {
	case c.send <- f:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// SendBlocking enqueues f, blocking (up to writeTimeout) if the queue is
// momentarily full — used for the full-state resync path, which must
// not itself be dropped.
func (c *Client) SendBlocking(f wireproto.Frame) {
	select {
	case c.send <- f:
	case <-c.done:
	case <-time.After(writeTimeout):
		slog.Warn("syncroom resync send timed out", "peer", c.ID)
	}
}

// Close closes the underlying connection and waits for both loops to
// exit.
func (c *Client) Close() {
	c.closer.Do(func() {
		close(c.done)
		c.conn.Close(websocket.StatusNormalClosure, closeReason)
	})
	c.wg.Wait()
}

func (c *Client) readLoop(ctx context.Context, room *Room) {
	defer func() {
		c.wg.Done()
		c.closer.Do(func() {
			close(c.done)
			c.conn.Close(websocket.StatusNormalClosure, closeReason)
		})
	}()

	for {
		f, err := wireproto.RecvWS(ctx, c.conn)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return
			}
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusNoStatusRcvd {
				slog.Warn("syncroom reader", "peer", c.ID, "error", err)
			}
			return
		}
		if err := room.HandleFrame(c, f); err != nil {
			slog.Warn("syncroom handle frame", "peer", c.ID, "type", f.Type, "error", err)
		}
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case f := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wireproto.SendWS(wctx, c.conn, f)
			cancel()
			if err != nil {
				slog.Warn("syncroom writer", "peer", c.ID, "type", f.Type, "error", err)
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
