package service

import (
	"context"
	"errors"
	"time"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/redis/go-redis/v9"
)

const cutoutKeyPrefix = "cutout:"

// CutoutStore 抠图结果的二级缓存，按内容哈希存取 PNG 字节
type CutoutStore interface {
	GetCutout(ctx context.Context, hash string) ([]byte, error)
	SetCutout(ctx context.Context, hash string, png []byte) error
}

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetCutout 从缓存获取抠图 PNG，未命中时返回 nil, nil
func (s *RedisService) GetCutout(ctx context.Context, hash string) ([]byte, error) {
	data, err := s.client.Get(ctx, cutoutKeyPrefix+hash).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// SetCutout 写入抠图 PNG，过期时间取 redis.ttl
func (s *RedisService) SetCutout(ctx context.Context, hash string, png []byte) error {
	return s.client.Set(ctx, cutoutKeyPrefix+hash, png, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
