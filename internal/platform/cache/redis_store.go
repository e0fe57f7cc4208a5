package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

const (
	fieldValue      = "v"
	fieldCreatedAt  = "c"
	fieldTTL        = "t"
	fieldSoftTTL    = "s"
	fieldGeneration = "g"

	redisScanBatch = 200
)

// putIfNewer writes the hash unless the stored generation is newer.
var putIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'g')
if cur and tonumber(cur) > tonumber(ARGV[5]) then
  return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'c', ARGV[2], 't', ARGV[3], 's', ARGV[4], 'g', ARGV[5])
redis.call('PEXPIRE', KEYS[1], ARGV[6])
return 1
`)

// RedisStore shares cached payloads between API instances. Each key is a hash
// holding the payload and its freshness metadata; redis expiry enforces the
// retention horizon.
type RedisStore struct {
	client    redis.UniversalClient
	retention time.Duration
}

func NewRedisStore(client redis.UniversalClient, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

// NewRedisStoreFromURL parses a redis:// URL and verifies connectivity.
func NewRedisStoreFromURL(ctx context.Context, rawURL string, retention time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client, retention), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if key == "" {
		return Entry{}, false, nil
	}

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return Entry{}, false, nil
	}

	entry, err := decodeRedisEntry(key, fields)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

func (s *RedisStore) Put(ctx context.Context, entry Entry) (bool, error) {
	if entry.Key == "" {
		return false, nil
	}

	args := encodeRedisEntry(entry, s.retention)
	applied, err := putIfNewer.Run(ctx, s.client, []string{entry.Key}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("redis put %s: %w", entry.Key, err)
	}
	return applied == 1, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, nil
	}

	removed := 0
	iter := s.client.Scan(ctx, 0, prefix+"*", redisScanBatch).Iterator()
	batch := make([]string, 0, redisScanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == redisScanBatch {
			if err := flush(); err != nil {
				return removed, fmt.Errorf("redis delete prefix %s: %w", prefix, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	if err := flush(); err != nil {
		return removed, fmt.Errorf("redis delete prefix %s: %w", prefix, err)
	}
	return removed, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func encodeRedisEntry(entry Entry, retention time.Duration) []any {
	expireMs := (entry.TTL + entry.SoftTTL + retention).Milliseconds()
	if expireMs < 1 {
		expireMs = 1
	}
	return []any{
		entry.Value,
		entry.CreatedAt.UnixMicro(),
		entry.TTL.Milliseconds(),
		entry.SoftTTL.Milliseconds(),
		entry.Generation,
		expireMs,
	}
}

var errCorruptEntry = crerr.New("corrupt cache entry")

func decodeRedisEntry(key string, fields map[string]string) (Entry, error) {
	value, ok := fields[fieldValue]
	if !ok {
		return Entry{}, crerr.Wrapf(errCorruptEntry, "key=%s missing value", key)
	}

	ints := make(map[string]int64, 4)
	for _, name := range []string{fieldCreatedAt, fieldTTL, fieldSoftTTL, fieldGeneration} {
		raw, ok := fields[name]
		if !ok {
			return Entry{}, crerr.Wrapf(errCorruptEntry, "key=%s missing %s", key, name)
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Entry{}, crerr.Wrapf(errCorruptEntry, "key=%s field %s: %v", key, name, err)
		}
		ints[name] = n
	}

	return Entry{
		Key:        key,
		Value:      []byte(value),
		CreatedAt:  time.UnixMicro(ints[fieldCreatedAt]),
		TTL:        time.Duration(ints[fieldTTL]) * time.Millisecond,
		SoftTTL:    time.Duration(ints[fieldSoftTTL]) * time.Millisecond,
		Generation: uint64(ints[fieldGeneration]),
	}, nil
}
