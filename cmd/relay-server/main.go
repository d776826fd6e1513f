package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcfg "github.com/park285/chess-relay-server/internal/config"
	"github.com/park285/chess-relay-server/internal/gamestore"
	"github.com/park285/chess-relay-server/internal/grace"
	"github.com/park285/chess-relay-server/internal/httpapi"
	"github.com/park285/chess-relay-server/internal/match"
	"github.com/park285/chess-relay-server/internal/msgcat"
	"github.com/park285/chess-relay-server/internal/obslog"
	"github.com/park285/chess-relay-server/internal/relay"
	"github.com/park285/chess-relay-server/internal/rematch"
	"github.com/park285/chess-relay-server/internal/room"
	"github.com/park285/chess-relay-server/internal/session"
	"github.com/park285/chess-relay-server/internal/ws"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	cat, err := msgcat.New(cfg.MsgDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	registry := session.NewRegistry()
	store := room.NewStore(registry, cat)

	// last-opponent index: Redis when configured, in-memory otherwise
	var index rematch.Index
	var redisIdx *rematch.RedisIndex
	if cfg.RedisURL != "" {
		redisIdx, err = rematch.NewRedisIndex(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis index error: %v", err)
		}
		index = redisIdx
	} else {
		index = rematch.NewMemoryIndex()
	}
	store.AttachOpponents(index)

	// result persistence is best-effort and optional
	var repo *gamestore.Repository
	if cfg.DatabaseURL != "" {
		repo, err = gamestore.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("game store error: %v", err)
		}
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := repo.EnsureSchema(sctx); err != nil {
			cancel()
			log.Fatalf("game store schema error: %v", err)
		}
		cancel()
		store.AttachSink(repo)
	} else {
		obslog.L().Warn("game results will not be persisted (DATABASE_URL not set)")
	}

	queue := match.NewQueue(store, registry)
	gc := grace.NewController(store, registry, cat, cfg.GracePeriod)
	gc.AttachOpponents(index)
	if repo != nil {
		gc.AttachSink(repo)
	}
	neg := rematch.NewNegotiator(index, store, registry)
	hub := relay.NewHub(registry, store, queue, neg, gc, cat)

	reaper := room.NewReaper(store, cfg.ReapInterval)
	reaper.Start()

	gameSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: ws.NewServer(hub, cat, cfg.AllowedOrigins).Handler(),
	}
	go func() {
		obslog.L().Info("game_listen", zap.String("addr", cfg.ListenAddr))
		if err := gameSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("game_listen_error", zap.Error(err))
		}
	}()

	ops := httpapi.NewServer(cfg.OpsAddr, hub)
	ops.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	obslog.L().Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = gameSrv.Shutdown(sctx)
	_ = ops.Shutdown(sctx)
	reaper.Stop()
	gc.Shutdown()
	if repo != nil {
		_ = repo.Close()
	}
	if redisIdx != nil {
		_ = redisIdx.Close()
	}
}
