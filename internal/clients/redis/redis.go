package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/utils"
)

// Service is a thin cache wrapper. Callers treat every failure as a miss;
// the cache is never load-bearing for correctness.
type Service struct {
	client *goredis.Client
	log    *logger.Logger
}

var ErrCacheMiss = errors.New("cache miss")

func NewService(log *logger.Logger) (*Service, error) {
	addr := utils.GetEnv("REDIS_ADDR", "localhost:6379", log)
	password := utils.GetEnv("REDIS_PASSWORD", "", log)
	db := utils.GetEnvAsInt("REDIS_DB", 0, log)

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("connected to redis", "addr", addr, "db", db)
	return &Service{client: client, log: log.With("client", "redis")}, nil
}

func (s *Service) GetJSON(ctx context.Context, key string, out interface{}) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (s *Service) SetJSON(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, ttl).Err()
}

func (s *Service) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *Service) Close() error {
	return s.client.Close()
}
