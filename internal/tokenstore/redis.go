package tokenstore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one key per live token. With a positive retention, keys
// expire on their own once every token they could represent has expired.
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "auth:token:"
	}
	if retention < 0 {
		retention = 0
	}
	return &RedisStore{client: client, prefix: prefix, retention: retention, now: time.Now}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + Key(token)
}

func (s *RedisStore) Save(ctx context.Context, token string) error {
	createdAt := strconv.FormatInt(s.now().UTC().Unix(), 10)
	if err := s.client.SetNX(ctx, s.key(token), createdAt, s.retention).Err(); err != nil {
		return unavailable("save", err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, unavailable("exists", err)
	}
	return n == 1, nil
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	_, err := s.Consume(ctx, token)
	return err
}

func (s *RedisStore) Consume(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(token)).Result()
	if err != nil {
		return false, unavailable("consume", err)
	}
	return n == 1, nil
}
