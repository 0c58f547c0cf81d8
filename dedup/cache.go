package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// EmbeddingCache stores computed embeddings keyed by a content hash so the
// same text is never sent to the provider twice. Lookups are best-effort: a
// cache failure degrades to a provider call, never to a classification
// failure.
type EmbeddingCache interface {
	Get(ctx context.Context, contentHash string) ([]float32, bool)
	Put(ctx context.Context, contentHash string, vector []float32)
}

// HashText returns the content-address for a candidate text: the SHA-256
// hex digest of the exact bytes the provider would embed.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// RedisEmbeddingCache is a Redis-backed EmbeddingCache. Vectors are stored
// JSON-encoded under a model-scoped key prefix and expire after ttl.
type RedisEmbeddingCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisEmbeddingCache wraps an existing Redis client. The model name is
// part of the key prefix so switching embedding models never reuses stale
// vectors.
func NewRedisEmbeddingCache(client *redis.Client, model string, ttl time.Duration) *RedisEmbeddingCache {
	return &RedisEmbeddingCache{
		client: client,
		prefix: "healthbrief:emb:" + model + ":",
		ttl:    ttl,
	}
}

func (c *RedisEmbeddingCache) Get(ctx context.Context, contentHash string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, c.prefix+contentHash).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Warning: embedding cache get failed: %v", err)
		}
		return nil, false
	}

	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		log.Printf("Warning: embedding cache holds malformed vector for %s: %v", contentHash, err)
		return nil, false
	}
	if len(vector) == 0 {
		return nil, false
	}
	return vector, true
}

func (c *RedisEmbeddingCache) Put(ctx context.Context, contentHash string, vector []float32) {
	raw, err := json.Marshal(vector)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+contentHash, raw, c.ttl).Err(); err != nil {
		log.Printf("Warning: embedding cache put failed: %v", err)
	}
}
