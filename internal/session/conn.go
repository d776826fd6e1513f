package session

import "context"

// Conn is a non-owning handle to a live client connection. The transport layer
// owns the connection lifetime; a handle may turn stale between lookup and use,
// in which case Send just returns an error.
type Conn interface {
	Send(ctx context.Context, v any) error
}
