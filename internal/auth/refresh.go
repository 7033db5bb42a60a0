package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrRefreshNotFound = errors.New("refresh token not found")

// RefreshStore persists issued refresh tokens until they are used or expire.
type RefreshStore interface {
	Save(ctx context.Context, token, userID string, ttl time.Duration) error
	// Consume deletes the token and returns its user id. Each token works once.
	Consume(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

type RedisRefreshStore struct {
	client *redis.Client
	prefix string
}

func NewRedisRefreshStore(client *redis.Client) *RedisRefreshStore {
	return &RedisRefreshStore{client: client, prefix: "refresh:"}
}

func (s *RedisRefreshStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+token, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (s *RedisRefreshStore) Consume(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrRefreshNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	return userID, nil
}

func (s *RedisRefreshStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.prefix+token).Err(); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}
