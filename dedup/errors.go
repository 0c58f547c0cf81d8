package dedup

import "fmt"

// EmbeddingUnavailableError reports that the embedding provider errored or
// timed out. Classification and publish operations fail with it rather than
// ever treating a provider failure as "unique"; no index mutation happens.
type EmbeddingUnavailableError struct {
	Cause error
}

func (e *EmbeddingUnavailableError) Error() string {
	return fmt.Sprintf("embedding unavailable: %v", e.Cause)
}

func (e *EmbeddingUnavailableError) Unwrap() error { return e.Cause }

// DimensionMismatchError reports a vector whose length disagrees with the
// index's established dimensionality. It usually means the embedding model
// changed underneath the index; the vector is never truncated or padded.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: index holds %d-dimensional vectors, got %d", e.Want, e.Got)
}

// IndexCorruptedError reports a malformed entry (empty id, empty vector, or
// non-finite components). During rebuild the entry is skipped with a logged
// warning so one bad record never blocks the rest of the index from loading.
type IndexCorruptedError struct {
	ArticleID string
	Reason    string
}

func (e *IndexCorruptedError) Error() string {
	return fmt.Sprintf("corrupt index entry %q: %s", e.ArticleID, e.Reason)
}
