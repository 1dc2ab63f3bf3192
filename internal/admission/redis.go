package admission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps admission state in Redis so several service instances
// share one view of each client. Request logs are sorted sets scored by
// millisecond timestamp; blacklist entries are plain keys.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// RedisConfig configures NewRedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// recordScript prunes, counts and conditionally appends in one round trip.
//
// KEYS[1] request log
// ARGV[1] now (ms), ARGV[2] window (ms), ARGV[3] limit, ARGV[4] member
var recordScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  return {count, 0}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {count + 1, 1}
`)

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisStoreFromClient(client, cfg.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client. Keys are namespaced
// under prefix.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = "admission"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) blacklistKey(client string) string {
	return s.prefix + ":blacklist:" + client
}

func (s *RedisStore) requestKey(scope, client string) string {
	return s.prefix + ":req:" + scope + ":" + client
}

func (s *RedisStore) IsBlacklisted(ctx context.Context, client string, _ time.Time) (bool, error) {
	n, err := s.client.Exists(ctx, s.blacklistKey(client)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Blacklist(ctx context.Context, client string, now time.Time, ttl time.Duration) error {
	return s.client.Set(ctx, s.blacklistKey(client), now.UTC().Format(time.RFC3339), ttl).Err()
}

func (s *RedisStore) Record(ctx context.Context, scope, client string, now time.Time, window time.Duration, limit int) (int, bool, error) {
	res, err := recordScript.Run(ctx, s.client,
		[]string{s.requestKey(scope, client)},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected record reply: %v", res)
	}
	return int(res[0]), res[1] == 1, nil
}

func (s *RedisStore) Forget(ctx context.Context, client string) error {
	keys := []string{s.blacklistKey(client)}
	matched, err := s.scan(ctx, s.prefix+":req:*:"+globEscaper.Replace(client))
	if err != nil {
		return err
	}
	keys = append(keys, matched...)
	return s.client.Del(ctx, keys...).Err()
}

func (s *RedisStore) Reset(ctx context.Context) error {
	keys, err := s.scan(ctx, s.prefix+":*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

func (s *RedisStore) scan(ctx context.Context, match string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
