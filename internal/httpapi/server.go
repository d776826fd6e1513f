package httpapi

import (
	"context"
	"encoding/json"

	"github.com/park285/chess-relay-server/internal/obslog"
	"github.com/park285/chess-relay-server/internal/relay"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// StatsProvider yields the hub's point-in-time counters.
type StatsProvider interface {
	Stats() relay.Snapshot
}

// Server is the ops/diagnostics listener: /healthz and /stats. It runs beside
// the game listener so probes never compete with websocket traffic.
type Server struct {
	addr  string
	stats StatsProvider
	srv   *fasthttp.Server
}

func NewServer(addr string, stats StatsProvider) *Server {
	s := &Server{addr: addr, stats: stats}
	s.srv = &fasthttp.Server{Handler: s.route, Name: "chess-relay-ops"}
	return s
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(s.addr); err != nil {
			obslog.L().Error("ops_listen_error", zap.String("addr", s.addr), zap.Error(err))
		}
	}()
	obslog.L().Info("ops_listen", zap.String("addr", s.addr))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case "/stats":
		body, err := json.Marshal(s.stats.Stats())
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBody(body)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}
