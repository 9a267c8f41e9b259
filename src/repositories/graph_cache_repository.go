package repositories

import (
	"socialgraph/src/infra/redis"
	"socialgraph/src/services/graph"
)

// GraphCacheRepository adapts the Redis client to the engine's cache
// contract. The only translation is the pipeline: the client returns its
// concrete pipeline type, the engine wants the interface.
type GraphCacheRepository struct {
	*redis.RedisClient
}

func NewGraphCacheRepository(client *redis.RedisClient) *GraphCacheRepository {
	return &GraphCacheRepository{RedisClient: client}
}

func (r *GraphCacheRepository) Pipeline() graph.CachePipeline {
	return r.RedisClient.Pipeline()
}
