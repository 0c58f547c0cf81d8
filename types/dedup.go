package types

import "time"

// Classification is the outcome of a near-duplicate check.
type Classification string

const (
	ClassificationUnique    Classification = "unique"
	ClassificationDuplicate Classification = "duplicate"
)

// SimilarityResult is the advisory verdict for one candidate text.
// MatchedArticleID is empty when nothing cleared the threshold. Score is
// cosine similarity in [0,1] and is deterministic for identical inputs.
type SimilarityResult struct {
	Classification   Classification `json:"classification"`
	MatchedArticleID string         `json:"matched_article_id,omitempty"`
	Score            float64        `json:"score"`
	CheckedAt        time.Time      `json:"checked_at"`
}

// IsDuplicate reports whether the candidate cleared the threshold.
func (r SimilarityResult) IsDuplicate() bool {
	return r.Classification == ClassificationDuplicate
}
