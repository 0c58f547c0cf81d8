package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// BloomConfig configures the RedisBloom connection and key.
type BloomConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
	Key      string // redis key for the bloom filter
	TTL      time.Duration
	// Capacity sets the initial BF.RESERVE capacity (number of items)
	Capacity int
	// ErrorRate sets the desired false positive probability (e.g. 0.001)
	ErrorRate float64
	// If true, the BF.RESERVE NONSCALING flag will be used
	NonScaling bool
}

// RedisBloom is a minimal Redis-backed Bloom wrapper using RedisBloom
// commands. It serves as the exact-duplicate prefilter in front of the
// embedding-based classifier: a hit means this precise content version was
// seen before, so no embedding call is needed.
type RedisBloom struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisBloom creates a RedisBloom wrapper and verifies connectivity.
// Zero-valued TTL, Capacity, and ErrorRate fall back to defaults.
func NewRedisBloom(cfg BloomConfig) (*RedisBloom, error) {
	if cfg.Key == "" {
		cfg.Key = "healthbrief:articles:bloom"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100000
	}
	if cfg.ErrorRate <= 0 {
		cfg.ErrorRate = 0.001
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	rb := &RedisBloom{client: client, key: cfg.Key, ttl: cfg.TTL}

	// If the key does not exist, attempt to create a Bloom filter with
	// BF.RESERVE using the configured capacity and error rate. If Redis lacks
	// the RedisBloom module or BF.RESERVE fails, BF.ADD may still auto-create
	// the filter depending on server settings, so the failure is non-fatal.
	exists, err := client.Exists(ctx, cfg.Key).Result()
	if err == nil && exists == 0 {
		// BF.RESERVE <key> <error_rate> <capacity> [NONSCALING]
		args := []interface{}{cfg.Key, fmt.Sprintf("%f", cfg.ErrorRate), cfg.Capacity}
		if cfg.NonScaling {
			args = append(args, "NONSCALING")
		}
		_ = client.Do(ctx, append([]interface{}{"BF.RESERVE"}, args...)...).Err()
	}

	return rb, nil
}

// Close closes the underlying Redis client.
func (r *RedisBloom) Close() error {
	return r.client.Close()
}

// Exists checks if the hashed value is present in the bloom filter.
// Uses the RedisBloom BF.EXISTS command.
func (r *RedisBloom) Exists(ctx context.Context, hash string) (bool, error) {
	res, err := r.client.Do(ctx, "BF.EXISTS", r.key, hash).Result()
	if err != nil {
		return false, err
	}

	switch v := res.(type) {
	case int64:
		return v == 1, nil
	case string:
		return v == "1", nil
	default:
		return false, fmt.Errorf("unexpected BF.EXISTS response type %T: %v", res, res)
	}
}

// Add inserts the hashed value into the bloom filter and ensures TTL on the
// key. The expire is reset on each add so the filter remains active for ttl
// after the most recent insertion.
func (r *RedisBloom) Add(ctx context.Context, hash string) error {
	if err := r.client.Do(ctx, "BF.ADD", r.key, hash).Err(); err != nil {
		return err
	}
	return r.client.Expire(ctx, r.key, r.ttl).Err()
}

// NormalizeAndHash normalizes an article's title and body and returns a
// SHA-256 hex hash for the bloom filter. Normalization collapses whitespace
// and lowercases so trivial formatting changes still hash identically. The
// result is sha256(normalizedTitle + "|" + normalizedContent).
func NormalizeAndHash(title, content string) string {
	combined := normalizeText(title) + "|" + normalizeText(content)
	h := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(h[:])
}

func normalizeText(t string) string {
	t = strings.TrimSpace(t)
	t = strings.ToLower(t)
	// collapse multiple whitespace
	fields := strings.Fields(t)
	return strings.Join(fields, " ")
}
