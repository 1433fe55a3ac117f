package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Service interface {
	// Generic cache operations
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetIfNewer(ctx context.Context, key string, value interface{}, version int64, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error

	// Health check
	Ping(ctx context.Context) error
}

type service struct {
	client redis.UniversalClient
}

func NewService(client redis.UniversalClient) Service {
	return &service{client: client}
}

func (s *service) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}

	return nil
}

func (s *service) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}

	return nil
}

// setIfNewer writes ARGV[1] unless the stored JSON carries a larger top-level
// "version" than ARGV[2]. Returns 1 when written, 0 when refused.
var setIfNewer = redis.NewScript(`
	local current = redis.call('GET', KEYS[1])
	if current then
		local ok, decoded = pcall(cjson.decode, current)
		if ok and type(decoded) == 'table' then
			local stored = tonumber(decoded['version'])
			if stored and stored > tonumber(ARGV[2]) then
				return 0
			end
		end
	end

	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
	return 1
`)

// SetIfNewer stores value unless the entry already under key is newer. value
// must marshal to a JSON object whose "version" field equals version.
func (s *service) SetIfNewer(ctx context.Context, key string, value interface{}, version int64, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("cache marshal error: %w", err)
	}

	written, err := setIfNewer.Run(ctx, s.client, []string{key}, data, version, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("cache set error: %w", err)
	}
	return written == 1, nil
}

func (s *service) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// DeletePattern removes every key matching pattern. SCAN keeps Redis responsive
// where KEYS would block it.
func (s *service) DeletePattern(ctx context.Context, pattern string) error {
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan error: %w", err)
	}

	if len(keys) > 0 {
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("cache delete pattern error: %w", err)
		}
	}

	return nil
}

func (s *service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Error definitions
var (
	ErrCacheMiss = errors.New("cache miss")
)
