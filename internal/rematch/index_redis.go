package rematch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/park285/chess-relay-server/internal/obslog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const ttlOpponent = 24 * time.Hour

// RedisIndex keeps the last-opponent mapping in Redis with a TTL so stale
// pairings age out on their own. Lookups are best-effort: Redis trouble only
// logs and reads as "no known opponent".
type RedisIndex struct {
	rdb *redis.Client
}

func NewRedisIndex(redisURL string) (*RedisIndex, error) {
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisIndex{rdb: rdb}, nil
}

func (r *RedisIndex) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

func (r *RedisIndex) Record(ctx context.Context, a, b string) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return
	}
	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, keyLast(a), b, ttlOpponent)
	pipe.Set(ctx, keyLast(b), a, ttlOpponent)
	if _, err := pipe.Exec(ctx); err != nil {
		obslog.L().Warn("opponent_index_write_error", zap.String("a", a), zap.String("b", b), zap.Error(err))
	}
}

func (r *RedisIndex) Opponent(ctx context.Context, id string) string {
	v, err := r.rdb.Get(ctx, keyLast(id)).Result()
	if err == redis.Nil {
		return ""
	}
	if err != nil {
		obslog.L().Warn("opponent_index_read_error", zap.String("session_id", id), zap.Error(err))
		return ""
	}
	return v
}

func keyLast(id string) string { return "rematch:last:" + strings.TrimSpace(id) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
