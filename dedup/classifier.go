package dedup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"healthbrief/types"
)

const (
	// DefaultSimilarityThreshold is the cosine similarity at or above which
	// a candidate counts as a near-duplicate. The comparison is inclusive:
	// a score exactly equal to the threshold classifies as duplicate.
	DefaultSimilarityThreshold float64 = 0.85

	// DefaultEmbedTimeout bounds a single embedding-provider call when the
	// caller's context carries no tighter deadline.
	DefaultEmbedTimeout = 30 * time.Second
)

// Classifier decides whether a candidate text near-duplicates an already
// published article. The verdict is advisory: callers decide whether to
// skip, edit, or force-store a flagged duplicate, and the classifier never
// deletes or blocks storage itself.
type Classifier struct {
	index     Index
	provider  EmbeddingsProvider
	cache     EmbeddingCache
	threshold float64
	timeout   time.Duration
}

// ClassifierConfig holds tuning for the classifier.
type ClassifierConfig struct {
	SimilarityThreshold float64       // Default: 0.85
	EmbedTimeout        time.Duration // Default: 30s
	Cache               EmbeddingCache // optional; nil disables caching
}

// NewClassifier constructs a classifier over a shared index and provider.
func NewClassifier(index Index, provider EmbeddingsProvider, config ClassifierConfig) (*Classifier, error) {
	if index == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("embeddings provider cannot be nil")
	}

	cfg := applyClassifierDefaults(config)
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be within [0,1], got %v", cfg.SimilarityThreshold)
	}

	return &Classifier{
		index:     index,
		provider:  provider,
		cache:     cfg.Cache,
		threshold: cfg.SimilarityThreshold,
		timeout:   cfg.EmbedTimeout,
	}, nil
}

// Classify embeds candidateText and compares it against the nearest indexed
// article. A provider error or timeout fails with EmbeddingUnavailableError
// rather than ever passing as "unique". An empty index yields unique with
// score 0. For a fixed index state and candidate vector the result is the
// same on every call.
func (c *Classifier) Classify(ctx context.Context, candidateText string) (*types.SimilarityResult, error) {
	result := &types.SimilarityResult{
		Classification: types.ClassificationUnique,
		CheckedAt:      time.Now(),
	}

	if strings.TrimSpace(candidateText) == "" {
		log.Printf("Warning: no content to classify")
		return result, nil
	}

	vector, err := embedText(ctx, c.provider, c.cache, c.timeout, candidateText)
	if err != nil {
		return nil, &EmbeddingUnavailableError{Cause: err}
	}

	matches, err := c.index.Search(vector, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to search similarity index: %w", err)
	}
	if len(matches) == 0 {
		return result, nil
	}

	top := matches[0]
	result.Score = top.Score
	if top.Score >= c.threshold {
		result.Classification = types.ClassificationDuplicate
		result.MatchedArticleID = top.ArticleID
		log.Printf("Found near-duplicate: candidate matches %s with %.2f%% similarity",
			top.ArticleID, top.Score*100)
	}

	return result, nil
}

// Threshold returns the configured similarity threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

func applyClassifierDefaults(config ClassifierConfig) ClassifierConfig {
	if config.SimilarityThreshold == 0 {
		config.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if config.EmbedTimeout == 0 {
		config.EmbedTimeout = DefaultEmbedTimeout
	}
	return config
}

// embedText obtains the embedding for text, consulting the cache first and
// bounding the provider call with timeout. The cache is best-effort; only
// provider failures surface as errors.
func embedText(ctx context.Context, provider EmbeddingsProvider, cache EmbeddingCache, timeout time.Duration, text string) ([]float32, error) {
	hash := HashText(text)
	if cache != nil {
		if vector, ok := cache.Get(ctx, hash); ok {
			return vector, nil
		}
	}

	embedCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	vectors, err := provider.EmbedTexts(embedCtx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, errors.New("provider returned no embedding")
	}

	if cache != nil {
		cache.Put(ctx, hash, vectors[0])
	}
	return vectors[0], nil
}
