package dedup

import (
	"log"
	"math"
	"sort"
	"sync"
)

// IndexEntry pairs an article id with its embedding at insertion time. The
// index never owns article content, only this pair.
type IndexEntry struct {
	ArticleID string    `json:"article_id"`
	Vector    []float32 `json:"vector"`
}

// Match is a single similarity-search hit.
type Match struct {
	ArticleID string  `json:"article_id"`
	Score     float64 `json:"score"`
}

// Index maintains the embeddings of published articles and answers
// k-nearest-neighbor queries by cosine similarity. Implementations must be
// safe for concurrent use: searches may run concurrently with each other,
// and every Insert/Remove/Rebuild is mutually exclusive with searches and
// with other mutations.
type Index interface {
	// Insert adds or replaces the entry for articleID. Re-inserting an id
	// overwrites its vector while keeping the entry's original insertion
	// rank, so a repeated identical insert leaves the index byte-for-byte
	// unchanged. Returns DimensionMismatchError when the vector length
	// disagrees with the dimensionality established by the first insert or
	// the last rebuild.
	Insert(articleID string, vector []float32) error

	// Remove deletes the entry for articleID; removing an absent id is a
	// no-op, not an error.
	Remove(articleID string) error

	// Search returns up to k entries ordered by descending similarity to
	// vector, ties broken by insertion order (earliest first). An empty
	// index or k <= 0 yields an empty slice, never an error.
	Search(vector []float32, k int) ([]Match, error)

	// Rebuild atomically replaces the entire index contents. Malformed
	// entries are skipped with a logged warning; the swap is all-or-nothing,
	// so concurrent searches observe either the old set or the new set and
	// never a partially populated index.
	Rebuild(entries []IndexEntry) error

	// Len reports the number of entries currently indexed.
	Len() int

	// Dimension reports the established vector dimensionality, 0 when not
	// yet established.
	Dimension() int
}

// MemoryIndex is a brute-force cosine index held entirely in memory. The
// article store is the durable source of truth; this index is a derived
// cache rebuilt from the published set at startup.
type MemoryIndex struct {
	mu    sync.RWMutex
	dim   int
	order []*memEntry // scan order doubles as insertion order for tie-breaks
	byID  map[string]*memEntry
}

type memEntry struct {
	id     string
	vector []float32
}

// NewMemoryIndex returns an empty index. Dimensionality is fixed by the
// first Insert or the next Rebuild.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{byID: make(map[string]*memEntry)}
}

// Insert implements Index.
func (x *MemoryIndex) Insert(articleID string, vector []float32) error {
	if err := validateEntry(articleID, vector); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dim == 0 {
		x.dim = len(vector)
	}
	if len(vector) != x.dim {
		return &DimensionMismatchError{Want: x.dim, Got: len(vector)}
	}

	if existing, ok := x.byID[articleID]; ok {
		// Overwrite in place so the entry keeps its first-insertion rank.
		existing.vector = cloneVector(vector)
		return nil
	}

	entry := &memEntry{id: articleID, vector: cloneVector(vector)}
	x.byID[articleID] = entry
	x.order = append(x.order, entry)
	return nil
}

// Remove implements Index.
func (x *MemoryIndex) Remove(articleID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	entry, ok := x.byID[articleID]
	if !ok {
		return nil
	}
	delete(x.byID, articleID)
	for i, cur := range x.order {
		if cur == entry {
			x.order = append(x.order[:i], x.order[i+1:]...)
			break
		}
	}
	return nil
}

// Search implements Index.
func (x *MemoryIndex) Search(vector []float32, k int) ([]Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.order) == 0 || k <= 0 {
		return []Match{}, nil
	}
	if len(vector) != x.dim {
		return nil, &DimensionMismatchError{Want: x.dim, Got: len(vector)}
	}

	matches := make([]Match, 0, len(x.order))
	for _, entry := range x.order {
		matches = append(matches, Match{
			ArticleID: entry.id,
			Score:     CosineSimilarity(vector, entry.vector),
		})
	}

	// Stable sort over the insertion-ordered scan keeps earliest-inserted
	// entries first among equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Rebuild implements Index. The replacement set is assembled off to the
// side and swapped in under the write lock in one step; any failure before
// the swap leaves the previous contents untouched.
func (x *MemoryIndex) Rebuild(entries []IndexEntry) error {
	newOrder := make([]*memEntry, 0, len(entries))
	newByID := make(map[string]*memEntry, len(entries))
	dim := 0

	for _, entry := range entries {
		if err := validateEntry(entry.ArticleID, entry.Vector); err != nil {
			log.Printf("Warning: skipping index entry during rebuild: %v", err)
			continue
		}
		if dim == 0 {
			dim = len(entry.Vector)
		}
		if len(entry.Vector) != dim {
			corrupt := &IndexCorruptedError{
				ArticleID: entry.ArticleID,
				Reason:    (&DimensionMismatchError{Want: dim, Got: len(entry.Vector)}).Error(),
			}
			log.Printf("Warning: skipping index entry during rebuild: %v", corrupt)
			continue
		}
		if existing, ok := newByID[entry.ArticleID]; ok {
			existing.vector = cloneVector(entry.Vector)
			continue
		}
		e := &memEntry{id: entry.ArticleID, vector: cloneVector(entry.Vector)}
		newByID[entry.ArticleID] = e
		newOrder = append(newOrder, e)
	}

	x.mu.Lock()
	x.dim = dim
	x.order = newOrder
	x.byID = newByID
	x.mu.Unlock()
	return nil
}

// Len implements Index.
func (x *MemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.order)
}

// Dimension implements Index.
func (x *MemoryIndex) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// CosineSimilarity returns the cosine of the angle between a and b clamped
// to [0,1], accumulating in float64 so the result is deterministic for
// identical inputs. Zero-magnitude vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	switch {
	case cos < 0:
		return 0
	case cos > 1:
		return 1
	}
	return cos
}

func validateEntry(articleID string, vector []float32) error {
	if articleID == "" {
		return &IndexCorruptedError{ArticleID: articleID, Reason: "empty article id"}
	}
	if len(vector) == 0 {
		return &IndexCorruptedError{ArticleID: articleID, Reason: "empty vector"}
	}
	for _, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &IndexCorruptedError{ArticleID: articleID, Reason: "non-finite vector component"}
		}
	}
	return nil
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
