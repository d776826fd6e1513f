package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/park285/chess-relay-server/internal/msgcat"
	"github.com/park285/chess-relay-server/internal/obslog"
	"github.com/park285/chess-relay-server/internal/relay"
	"github.com/park285/chess-relay-server/pkg/wsmsg"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Server terminates game websockets and feeds the hub. One goroutine per
// connection runs the read loop; the hub serializes everything else.
type Server struct {
	hub            *relay.Hub
	cat            *msgcat.Catalog
	allowedOrigins []string
}

func NewServer(hub *relay.Hub, cat *msgcat.Catalog, allowedOrigins []string) *Server {
	return &Server{hub: hub, cat: cat, allowedOrigins: allowedOrigins}
}

// Handler mounts the game endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/game/chess", s.handleGame)
	return mux
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	}
	if len(s.allowedOrigins) > 0 {
		opts.OriginPatterns = s.allowedOrigins
	} else {
		opts.InsecureSkipVerify = true
	}
	c, err := websocket.Accept(w, r, opts)
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}
	conn := newConn(c)

	// the connection outlives the HTTP handshake request
	ctx := context.Background()

	// a client reconnecting after a drop presents its prior session id
	sessionID := s.hub.HandleConnect(ctx, r.URL.Query().Get("session"), conn)
	defer s.hub.HandleDisconnect(ctx, sessionID)
	defer c.Close(websocket.StatusNormalClosure, "bye")

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			// closure is a lifecycle transition, not an error
			obslog.L().Debug("ws_closed", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
		var in wsmsg.Inbound
		if uerr := json.Unmarshal(data, &in); uerr != nil || in.Type == "" {
			_ = conn.Send(ctx, wsmsg.NewError(s.cat.Text("error.malformed")))
			continue
		}
		s.hub.HandleMessage(ctx, sessionID, &in)
	}
}
