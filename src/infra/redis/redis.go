package redis

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the cache backend for the graph engine: plain key/value
// entries for edge snapshots and counters, plus one sorted set per
// (origin, type) edge list scored by edge time.
type RedisClient struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
}

func NewRedisClient(addrs string, poolSize int, defaultTTL time.Duration) *RedisClient {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: strings.Split(addrs, ","),

		PoolSize:     poolSize,
		MinIdleConns: 10,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})

	return &RedisClient{
		client:     client,
		defaultTTL: defaultTTL,
	}
}

// WithPrefix returns a client namespacing every key, used by tests to isolate
// their keyspace.
func (rc *RedisClient) WithPrefix(prefix string) *RedisClient {
	clone := *rc
	clone.prefix = prefix
	return &clone
}

func (rc *RedisClient) key(k string) string {
	return rc.prefix + k
}

func (rc *RedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	result, err := rc.client.Get(ctx, rc.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

func (rc *RedisClient) Set(ctx context.Context, key string, value []byte) error {
	return rc.client.Set(ctx, rc.key(key), value, rc.defaultTTL).Err()
}

func (rc *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = rc.key(k)
	}
	return rc.client.Del(ctx, prefixed...).Err()
}

func (rc *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rc.client.Exists(ctx, rc.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ZRevRange returns up to limit sorted-set members starting at offset,
// highest score first.
func (rc *RedisClient) ZRevRange(ctx context.Context, key string, offset, limit int64) ([][]byte, error) {
	if limit <= 0 {
		return nil, nil
	}
	items, err := rc.client.ZRevRange(ctx, rc.key(key), offset, offset+limit-1).Result()
	if err != nil {
		return nil, err
	}
	return toBytes(items), nil
}

// ZRevRangeByScore returns up to limit members with score in [min, max],
// highest score first, skipping offset members.
func (rc *RedisClient) ZRevRangeByScore(ctx context.Context, key string, max, min float64, offset, limit int64) ([][]byte, error) {
	if limit <= 0 {
		return nil, nil
	}
	items, err := rc.client.ZRevRangeByScore(ctx, rc.key(key), &redis.ZRangeBy{
		Min:    strconv.FormatFloat(min, 'f', -1, 64),
		Max:    strconv.FormatFloat(max, 'f', -1, 64),
		Offset: offset,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	return toBytes(items), nil
}

func toBytes(items []string) [][]byte {
	result := make([][]byte, len(items))
	for i, item := range items {
		result[i] = []byte(item)
	}
	return result
}

// Pipeline opens an atomic batch (MULTI/EXEC). All queued operations apply
// together on Exec.
func (rc *RedisClient) Pipeline() *Pipeline {
	return &Pipeline{rc: rc, pipe: rc.client.TxPipeline()}
}

type Pipeline struct {
	rc   *RedisClient
	pipe redis.Pipeliner
}

func (p *Pipeline) Set(key string, value []byte) {
	p.pipe.Set(context.Background(), p.rc.key(key), value, p.rc.defaultTTL)
}

func (p *Pipeline) Delete(key string) {
	p.pipe.Del(context.Background(), p.rc.key(key))
}

func (p *Pipeline) Incr(key string) {
	p.pipe.Incr(context.Background(), p.rc.key(key))
}

func (p *Pipeline) Decr(key string) {
	p.pipe.Decr(context.Background(), p.rc.key(key))
}

func (p *Pipeline) ZAdd(key string, member []byte, score float64) {
	p.pipe.ZAdd(context.Background(), p.rc.key(key), redis.Z{Score: score, Member: member})
}

func (p *Pipeline) ZRem(key string, member []byte) {
	p.pipe.ZRem(context.Background(), p.rc.key(key), member)
}

func (p *Pipeline) Exec(ctx context.Context) error {
	_, err := p.pipe.Exec(ctx)
	return err
}

// FlushByPrefix drops every key under this client's prefix. With an empty
// prefix it scans the whole keyspace, so only the engine's ClearCache and
// tests should call it.
func (rc *RedisClient) FlushByPrefix(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := rc.client.Scan(ctx, cursor, rc.prefix+"*", 500).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := rc.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (rc *RedisClient) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}
