package ws

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// conn wraps a websocket connection with a write mutex so concurrent handlers
// (relay, grace timer, reaper) never interleave frames. Implements session.Conn.
type conn struct {
	mu sync.Mutex
	c  *websocket.Conn
}

func newConn(c *websocket.Conn) *conn {
	return &conn{c: c}
}

func (w *conn) Send(ctx context.Context, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	dctx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, writeTimeout)
		defer cancel()
	}
	return wsjson.Write(dctx, w.c, v)
}
