package config

import "time"

// Duplicate Detection Constants
const (
	// DefaultSimilarityThreshold is the cosine similarity at or above which
	// a candidate article counts as a near-duplicate.
	DefaultSimilarityThreshold = 0.85

	// DefaultEmbedTimeout bounds a single embedding-provider call.
	DefaultEmbedTimeout = 30 * time.Second

	// EmbeddingCacheTTL is how long cached embeddings stay in Redis.
	EmbeddingCacheTTL = 7 * 24 * time.Hour
)

// Content Pipeline Constants
const (
	// DefaultChunkSizeWords is the target word count per content chunk.
	DefaultChunkSizeWords = 200

	// MinRelevanceScore is the cutoff below which a chunk is discarded
	// instead of being summarized into an article.
	MinRelevanceScore = 0.3

	// ReadingLevelTarget is the grade level the summarizer writes for.
	ReadingLevelTarget = 6.0

	// MaxTitleWords caps generated article titles.
	MaxTitleWords = 8

	// MaxConcurrentChunks limits chunks summarized in parallel per PDF.
	MaxConcurrentChunks = 3
)

// Upload Constants
const (
	// MaxUploadSizeMB is the largest accepted PDF upload.
	MaxUploadSizeMB = 50

	// PDFContentType is the only accepted upload MIME type.
	PDFContentType = "application/pdf"
)

// Auth Constants
const (
	// TokenExpiry is the lifetime of issued admin JWTs.
	TokenExpiry = 24 * time.Hour
)
