package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vcporto/sketchdash/internal/game"
)

const txRetries = 5

// Redis stores each room's JSON snapshot under room:<CODE> with the
// room TTL, refreshed on every write. Update runs as a WATCH
// transaction so concurrent triggers (host action vs timeout) settle by
// optimistic retry instead of a lost write.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedis(redisURL string, ttl time.Duration, logger *zap.Logger) (*Redis, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for the redis registry")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{rdb: rdb, ttl: ttl, logger: logger}, nil
}

func (s *Redis) Create(ctx context.Context, room *game.Room) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, roomKey(room.Code), raw, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return game.ErrRoomExists
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, code string) (*game.Room, error) {
	raw, err := s.rdb.Get(ctx, roomKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, game.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRoom(raw)
}

func (s *Redis) Update(ctx context.Context, code string, fn func(*game.Room) error) (*game.Room, error) {
	key := roomKey(code)

	var updated *game.Room
	for attempt := 0; attempt < txRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return game.ErrRoomNotFound
			}
			if err != nil {
				return err
			}
			room, err := decodeRoom(raw)
			if err != nil {
				return err
			}
			if err := fn(room); err != nil {
				return err
			}
			room.LastUpdate = time.Now()

			newRaw, err := json.Marshal(room)
			if err != nil {
				return err
			}
			pipe := tx.TxPipeline()
			pipe.Set(ctx, key, newRaw, s.ttl)
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
			updated = room
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("room_tx_retry", zap.String("code", code), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("room %s: transaction contention, gave up after %d attempts", code, txRetries)
}

func (s *Redis) Delete(ctx context.Context, code string) error {
	n, err := s.rdb.Del(ctx, roomKey(code)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return game.ErrRoomNotFound
	}
	return nil
}

func (s *Redis) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func roomKey(code string) string { return "room:" + strings.ToUpper(strings.TrimSpace(code)) }

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
