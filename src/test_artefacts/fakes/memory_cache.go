package fakes

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"socialgraph/src/services/graph"
)

// MemoryCache is an in-memory cache for engine tests, mimicking the Redis
// client's semantics: byte values by key, one sorted set per edge list, and
// an atomic pipeline. Missing keys are reported distinctly from empty values.
type MemoryCache struct {
	mu     sync.Mutex
	values map[string][]byte
	zsets  map[string][]zmember
}

type zmember struct {
	member string
	score  float64
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		values: make(map[string][]byte),
		zsets:  make(map[string][]zmember),
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, exists := c.values[key]
	if !exists {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value)
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.delete(key)
	}
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.values[key]; exists {
		return true, nil
	}
	_, exists := c.zsets[key]
	return exists, nil
}

func (c *MemoryCache) ZRevRange(ctx context.Context, key string, offset, limit int64) ([][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit <= 0 {
		return nil, nil
	}
	return pageMembers(c.sortedDesc(key), offset, limit), nil
}

func (c *MemoryCache) ZRevRangeByScore(ctx context.Context, key string, max, min float64, offset, limit int64) ([][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit <= 0 {
		return nil, nil
	}
	var inRange []zmember
	for _, m := range c.sortedDesc(key) {
		if m.score >= min && m.score <= max {
			inRange = append(inRange, m)
		}
	}
	return pageMembers(inRange, offset, limit), nil
}

func (c *MemoryCache) Pipeline() graph.CachePipeline {
	return &memoryPipeline{cache: c}
}

func (c *MemoryCache) FlushByPrefix(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string][]byte)
	c.zsets = make(map[string][]zmember)
	return nil
}

// Keys returns every live key, for test assertions.
func (c *MemoryCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.values)+len(c.zsets))
	for key := range c.values {
		keys = append(keys, key)
	}
	for key := range c.zsets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (c *MemoryCache) set(key string, value []byte) {
	stored := make([]byte, len(value))
	copy(stored, value)
	c.values[key] = stored
}

func (c *MemoryCache) delete(key string) {
	delete(c.values, key)
	delete(c.zsets, key)
}

func (c *MemoryCache) incr(key string, delta int64) {
	current := int64(0)
	if raw, exists := c.values[key]; exists {
		current, _ = strconv.ParseInt(string(raw), 10, 64)
	}
	c.values[key] = []byte(strconv.FormatInt(current+delta, 10))
}

func (c *MemoryCache) zadd(key, member string, score float64) {
	members := c.zsets[key]
	for i, m := range members {
		if m.member == member {
			members[i].score = score
			c.zsets[key] = members
			return
		}
	}
	c.zsets[key] = append(members, zmember{member: member, score: score})
}

func (c *MemoryCache) zrem(key, member string) {
	members := c.zsets[key]
	for i, m := range members {
		if m.member == member {
			c.zsets[key] = append(members[:i], members[i+1:]...)
			if len(c.zsets[key]) == 0 {
				delete(c.zsets, key)
			}
			return
		}
	}
}

func (c *MemoryCache) sortedDesc(key string) []zmember {
	members := append([]zmember(nil), c.zsets[key]...)
	sort.Slice(members, func(i, j int) bool {
		if members[i].score == members[j].score {
			return members[i].member > members[j].member
		}
		return members[i].score > members[j].score
	})
	return members
}

func pageMembers(members []zmember, offset, limit int64) [][]byte {
	if offset >= int64(len(members)) {
		return nil
	}
	members = members[offset:]
	if limit < int64(len(members)) {
		members = members[:limit]
	}
	out := make([][]byte, len(members))
	for i, m := range members {
		out[i] = []byte(m.member)
	}
	return out
}

type pipelineOp struct {
	kind   string
	key    string
	value  []byte
	member string
	score  float64
}

type memoryPipeline struct {
	cache *MemoryCache
	ops   []pipelineOp
}

func (p *memoryPipeline) Set(key string, value []byte) {
	p.ops = append(p.ops, pipelineOp{kind: "set", key: key, value: value})
}

func (p *memoryPipeline) Delete(key string) {
	p.ops = append(p.ops, pipelineOp{kind: "delete", key: key})
}

func (p *memoryPipeline) Incr(key string) {
	p.ops = append(p.ops, pipelineOp{kind: "incr", key: key})
}

func (p *memoryPipeline) Decr(key string) {
	p.ops = append(p.ops, pipelineOp{kind: "decr", key: key})
}

func (p *memoryPipeline) ZAdd(key string, member []byte, score float64) {
	p.ops = append(p.ops, pipelineOp{kind: "zadd", key: key, member: string(member), score: score})
}

func (p *memoryPipeline) ZRem(key string, member []byte) {
	p.ops = append(p.ops, pipelineOp{kind: "zrem", key: key, member: string(member)})
}

func (p *memoryPipeline) Exec(ctx context.Context) error {
	p.cache.mu.Lock()
	defer p.cache.mu.Unlock()
	for _, op := range p.ops {
		switch op.kind {
		case "set":
			p.cache.set(op.key, op.value)
		case "delete":
			p.cache.delete(op.key)
		case "incr":
			p.cache.incr(op.key, 1)
		case "decr":
			p.cache.incr(op.key, -1)
		case "zadd":
			p.cache.zadd(op.key, op.member, op.score)
		case "zrem":
			p.cache.zrem(op.key, op.member)
		}
	}
	p.ops = nil
	return nil
}
