package dedup

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"healthbrief/types"
)

// ArticleSource is the coordinator's read-only view of the article store:
// enumeration of every published record for the startup rebuild. The store
// is the durable source of truth; the index is always rebuildable from it
// and never treated as authoritative when the two disagree.
type ArticleSource interface {
	ListPublished(ctx context.Context) ([]types.HealthArticle, error)
}

// Coordinator keeps the similarity index synchronized with article
// lifecycle transitions. All index mutations funnel through it; the index's
// own locking serializes them against concurrent searches.
type Coordinator struct {
	index    Index
	provider EmbeddingsProvider
	source   ArticleSource
	cache    EmbeddingCache
	timeout  time.Duration
}

// CoordinatorConfig holds tuning for the coordinator.
type CoordinatorConfig struct {
	EmbedTimeout time.Duration  // Default: 30s
	Cache        EmbeddingCache // optional; nil disables caching
}

// NewCoordinator constructs a coordinator over a shared index, provider,
// and article source.
func NewCoordinator(index Index, provider EmbeddingsProvider, source ArticleSource, config CoordinatorConfig) (*Coordinator, error) {
	if index == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("embeddings provider cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("article source cannot be nil")
	}

	if config.EmbedTimeout == 0 {
		config.EmbedTimeout = DefaultEmbedTimeout
	}

	return &Coordinator{
		index:    index,
		provider: provider,
		source:   source,
		cache:    config.Cache,
		timeout:  config.EmbedTimeout,
	}, nil
}

// OnPublish registers an article that just entered a published status.
// The record's existing embedding is reused when present for the current
// content version; otherwise one is computed and set on the record so the
// calling workflow can persist it. If embedding fails the publish fails as
// a whole: the error propagates and the index is left untouched, so there
// is no partially published state. Re-publishing an edited article simply
// overwrites its index entry; no duplicate check against itself happens.
func (co *Coordinator) OnPublish(ctx context.Context, article *types.HealthArticle) error {
	if article == nil {
		return fmt.Errorf("article cannot be nil")
	}
	if article.ID == "" {
		return fmt.Errorf("article is missing an id")
	}
	if strings.TrimSpace(article.ContentText) == "" {
		return fmt.Errorf("article %s has no content to embed", article.ID)
	}
	if !article.Status.Published() {
		return fmt.Errorf("article %s has status %q, not a published status", article.ID, article.Status)
	}

	if len(article.Embedding) == 0 {
		vector, err := embedText(ctx, co.provider, co.cache, co.timeout, article.EmbeddingText())
		if err != nil {
			return &EmbeddingUnavailableError{Cause: err}
		}
		article.Embedding = vector
	}

	if err := co.index.Insert(article.ID, article.Embedding); err != nil {
		return fmt.Errorf("failed to index article %s: %w", article.ID, err)
	}
	return nil
}

// OnUnpublishOrDelete removes an article from the index when it is deleted
// or demoted out of the published set. Removing an id that was never
// indexed is a no-op, so the call is safe to repeat.
func (co *Coordinator) OnUnpublishOrDelete(articleID string) error {
	if articleID == "" {
		return nil
	}
	return co.index.Remove(articleID)
}

// OnStartup rebuilds the index from the store's published set. This is the
// recovery path after a crash or cold start; the index holds no durable
// state of its own. Records with a missing embedding are re-embedded via
// the provider. The rebuild is best-effort per entry: a record that cannot
// be embedded is logged and skipped, but an unreachable store fails the
// whole startup.
func (co *Coordinator) OnStartup(ctx context.Context) error {
	articles, err := co.source.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("failed to load published articles: %w", err)
	}

	entries := make([]IndexEntry, 0, len(articles))
	recomputed := 0
	for i := range articles {
		article := &articles[i]
		vector := []float32(article.Embedding)
		if len(vector) == 0 {
			vector, err = embedText(ctx, co.provider, co.cache, co.timeout, article.EmbeddingText())
			if err != nil {
				// A canceled rebuild must not install the partial set it
				// got through; per-entry skipping is for provider failures.
				if ctx.Err() != nil {
					return fmt.Errorf("index rebuild interrupted: %w", ctx.Err())
				}
				log.Printf("Warning: skipping article %s during index rebuild: embedding unavailable: %v", article.ID, err)
				continue
			}
			recomputed++
		}
		entries = append(entries, IndexEntry{ArticleID: article.ID, Vector: vector})
	}

	if err := co.index.Rebuild(entries); err != nil {
		return fmt.Errorf("failed to rebuild similarity index: %w", err)
	}

	log.Printf("Rebuilt similarity index: %d published articles indexed, %d embeddings recomputed",
		co.index.Len(), recomputed)
	return nil
}
