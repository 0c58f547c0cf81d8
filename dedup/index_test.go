package dedup

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"
)

func TestIndexSearchOrdersByDescendingSimilarity(t *testing.T) {
	idx := NewMemoryIndex()

	entries := map[string][]float32{
		"far":    {0, 1, 0},
		"near":   {0.99, 0.01, 0},
		"exact":  {1, 0, 0},
		"middle": {0.7, 0.7, 0},
	}
	for id, vector := range entries {
		if err := idx.Insert(id, vector); err != nil {
			t.Fatalf("insert %s failed: %v", id, err)
		}
	}

	matches, err := idx.Search([]float32{1, 0, 0}, 4)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 4 {
		t.Fatalf("expected 4 matches, got %d", len(matches))
	}

	wantOrder := []string{"exact", "near", "middle", "far"}
	for i, want := range wantOrder {
		if matches[i].ArticleID != want {
			t.Fatalf("position %d: got %s, want %s", i, matches[i].ArticleID, want)
		}
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Fatalf("scores not descending at position %d: %v after %v", i, matches[i].Score, matches[i-1].Score)
		}
	}
	if matches[0].Score < 0.999999 {
		t.Fatalf("exact match scored %v, want ~1.0", matches[0].Score)
	}
}

func TestIndexInsertIsIdempotent(t *testing.T) {
	idx := NewMemoryIndex()

	vector := []float32{0.5, 0.5, 0.7}
	for i := 0; i < 3; i++ {
		if err := idx.Insert("art-a", vector); err != nil {
			t.Fatalf("insert attempt %d failed: %v", i, err)
		}
	}

	if idx.Len() != 1 {
		t.Fatalf("expected 1 entry after repeated inserts, got %d", idx.Len())
	}

	matches, err := idx.Search(vector, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ArticleID != "art-a" {
		t.Fatalf("unexpected matches after repeated inserts: %+v", matches)
	}
}

func TestIndexOverwriteKeepsInsertionRank(t *testing.T) {
	idx := NewMemoryIndex()

	if err := idx.Insert("first", []float32{1, 0}); err != nil {
		t.Fatalf("insert first failed: %v", err)
	}
	if err := idx.Insert("second", []float32{1, 0}); err != nil {
		t.Fatalf("insert second failed: %v", err)
	}

	// Same direction, new magnitude: the score ties stay exact while the
	// stored vector changes.
	if err := idx.Insert("first", []float32{2, 0}); err != nil {
		t.Fatalf("overwrite first failed: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 entries after overwrite, got %d", idx.Len())
	}

	matches, err := idx.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if matches[0].ArticleID != "first" || matches[1].ArticleID != "second" {
		t.Fatalf("overwrite changed insertion rank: %+v", matches)
	}
}

func TestIndexRemoveThenReinsertAssignsNewRank(t *testing.T) {
	idx := NewMemoryIndex()

	vector := []float32{0, 1}
	if err := idx.Insert("first", vector); err != nil {
		t.Fatalf("insert first failed: %v", err)
	}
	if err := idx.Insert("second", vector); err != nil {
		t.Fatalf("insert second failed: %v", err)
	}

	if err := idx.Remove("first"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := idx.Insert("first", vector); err != nil {
		t.Fatalf("reinsert failed: %v", err)
	}

	matches, err := idx.Search(vector, 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if matches[0].ArticleID != "second" || matches[1].ArticleID != "first" {
		t.Fatalf("reinserted entry should rank last among ties: %+v", matches)
	}
}

func TestIndexSearchBreaksTiesByInsertionOrder(t *testing.T) {
	idx := NewMemoryIndex()

	vector := []float32{0.3, 0.4}
	for _, id := range []string{"art-a", "art-b", "art-c"} {
		if err := idx.Insert(id, vector); err != nil {
			t.Fatalf("insert %s failed: %v", id, err)
		}
	}

	matches, err := idx.Search(vector, 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected k=2 matches, got %d", len(matches))
	}
	if matches[0].ArticleID != "art-a" || matches[1].ArticleID != "art-b" {
		t.Fatalf("ties should resolve to earliest inserted: %+v", matches)
	}
}

func TestIndexRemoveAbsentIsNoOp(t *testing.T) {
	idx := NewMemoryIndex()

	if err := idx.Remove("never-indexed"); err != nil {
		t.Fatalf("removing an absent id should not error: %v", err)
	}

	if err := idx.Insert("art-a", []float32{1, 0}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := idx.Remove("art-a"); err != nil {
			t.Fatalf("remove attempt %d failed: %v", i, err)
		}
	}
	if idx.Len() != 0 {
		t.Fatalf("expected empty index after removes, got %d entries", idx.Len())
	}
}

func TestIndexSearchEmptyIndex(t *testing.T) {
	idx := NewMemoryIndex()

	matches, err := idx.Search([]float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("search on empty index should not error: %v", err)
	}
	if matches == nil || len(matches) != 0 {
		t.Fatalf("expected empty result slice, got %+v", matches)
	}

	if err := idx.Insert("art-a", []float32{1, 0, 0}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	matches, err = idx.Search([]float32{1, 0, 0}, 0)
	if err != nil {
		t.Fatalf("search with k=0 should not error: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches for k=0, got %+v", matches)
	}
}

func TestIndexDimensionMismatch(t *testing.T) {
	idx := NewMemoryIndex()

	if err := idx.Insert("art-a", []float32{1, 0, 0}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if idx.Dimension() != 3 {
		t.Fatalf("expected dimensionality 3 after first insert, got %d", idx.Dimension())
	}

	err := idx.Insert("art-b", []float32{1, 0})
	var mismatch *DimensionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
	if mismatch.Want != 3 || mismatch.Got != 2 {
		t.Fatalf("unexpected mismatch detail: want=%d got=%d", mismatch.Want, mismatch.Got)
	}

	if _, err := idx.Search([]float32{1, 0}, 1); !errors.As(err, &mismatch) {
		t.Fatalf("expected DimensionMismatchError from search, got %v", err)
	}

	if idx.Len() != 1 {
		t.Fatalf("rejected insert must not change the index, got %d entries", idx.Len())
	}
}

func TestIndexRejectsMalformedVectors(t *testing.T) {
	idx := NewMemoryIndex()

	cases := []struct {
		name   string
		id     string
		vector []float32
	}{
		{"empty id", "", []float32{1, 0}},
		{"nil vector", "art-a", nil},
		{"empty vector", "art-a", []float32{}},
		{"nan component", "art-a", []float32{float32(math.NaN()), 0}},
		{"inf component", "art-a", []float32{float32(math.Inf(1)), 0}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := idx.Insert(c.id, c.vector)
			var corrupt *IndexCorruptedError
			if !errors.As(err, &corrupt) {
				t.Fatalf("expected IndexCorruptedError, got %v", err)
			}
		})
	}

	if idx.Len() != 0 {
		t.Fatalf("malformed inserts must not populate the index, got %d entries", idx.Len())
	}
}

func TestIndexRandomOpsMatchReferenceSet(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	idx := NewMemoryIndex()
	reference := make(map[string][]float32)

	const dim = 4
	ids := make([]string, 40)
	for i := range ids {
		ids[i] = fmt.Sprintf("article-%02d", i)
	}

	randomVector := func() []float32 {
		vector := make([]float32, dim)
		for i := range vector {
			vector[i] = rnd.Float32()
		}
		return vector
	}
	query := randomVector()

	for op := 0; op < 600; op++ {
		id := ids[rnd.Intn(len(ids))]
		if rnd.Float64() < 0.6 {
			vector := randomVector()
			if err := idx.Insert(id, vector); err != nil {
				t.Fatalf("op %d: insert %s failed: %v", op, id, err)
			}
			reference[id] = vector
		} else {
			if err := idx.Remove(id); err != nil {
				t.Fatalf("op %d: remove %s failed: %v", op, id, err)
			}
			delete(reference, id)
		}

		if idx.Len() != len(reference) {
			t.Fatalf("op %d: index has %d entries, reference has %d", op, idx.Len(), len(reference))
		}

		if op%50 != 0 {
			continue
		}

		matches, err := idx.Search(query, len(ids))
		if err != nil {
			t.Fatalf("op %d: search failed: %v", op, err)
		}
		if len(matches) != len(reference) {
			t.Fatalf("op %d: search returned %d matches, reference has %d", op, len(matches), len(reference))
		}
		for _, m := range matches {
			want, ok := reference[m.ArticleID]
			if !ok {
				t.Fatalf("op %d: search returned %s which is not in the reference set", op, m.ArticleID)
			}
			if got := CosineSimilarity(query, want); got != m.Score {
				t.Fatalf("op %d: score for %s = %v, want %v", op, m.ArticleID, m.Score, got)
			}
		}
		for i := 1; i < len(matches); i++ {
			if matches[i].Score > matches[i-1].Score {
				t.Fatalf("op %d: results out of order at %d", op, i)
			}
		}
	}
}

func TestIndexRebuildReplacesContents(t *testing.T) {
	idx := NewMemoryIndex()

	if err := idx.Insert("stale-a", []float32{1, 0, 0}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := idx.Insert("stale-b", []float32{0, 1, 0}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	entries := []IndexEntry{
		{ArticleID: "fresh-a", Vector: []float32{1, 0, 0, 0, 0}},
		{ArticleID: "fresh-b", Vector: []float32{0, 1, 0, 0, 0}},
		{ArticleID: "fresh-c", Vector: []float32{0, 0, 1, 0, 0}},
	}
	if err := idx.Rebuild(entries); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	if idx.Len() != 3 {
		t.Fatalf("expected 3 entries after rebuild, got %d", idx.Len())
	}
	if idx.Dimension() != 5 {
		t.Fatalf("rebuild should reset dimensionality to 5, got %d", idx.Dimension())
	}

	matches, err := idx.Search([]float32{1, 0, 0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, m := range matches {
		if strings.HasPrefix(m.ArticleID, "stale-") {
			t.Fatalf("stale entry %s survived the rebuild", m.ArticleID)
		}
	}

	if err := idx.Rebuild(nil); err != nil {
		t.Fatalf("rebuild to empty failed: %v", err)
	}
	if idx.Len() != 0 || idx.Dimension() != 0 {
		t.Fatalf("empty rebuild should clear the index, got len=%d dim=%d", idx.Len(), idx.Dimension())
	}
}

func TestIndexRebuildSkipsMalformedEntries(t *testing.T) {
	idx := NewMemoryIndex()

	entries := []IndexEntry{
		{ArticleID: "good-a", Vector: []float32{1, 0, 0}},
		{ArticleID: "", Vector: []float32{1, 0, 0}},
		{ArticleID: "no-vector", Vector: nil},
		{ArticleID: "bad-nan", Vector: []float32{float32(math.NaN()), 0, 0}},
		{ArticleID: "bad-dim", Vector: []float32{1, 0}},
		{ArticleID: "good-b", Vector: []float32{0, 1, 0}},
	}
	if err := idx.Rebuild(entries); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	if idx.Len() != 2 {
		t.Fatalf("expected 2 valid entries after rebuild, got %d", idx.Len())
	}
	matches, err := idx.Search([]float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, m := range matches {
		if m.ArticleID != "good-a" && m.ArticleID != "good-b" {
			t.Fatalf("malformed entry %s made it into the index", m.ArticleID)
		}
	}
}

func TestIndexRebuildLastVectorWinsForDuplicateIDs(t *testing.T) {
	idx := NewMemoryIndex()

	entries := []IndexEntry{
		{ArticleID: "art-a", Vector: []float32{1, 0, 0}},
		{ArticleID: "art-b", Vector: []float32{0, 1, 0}},
		{ArticleID: "art-a", Vector: []float32{0, 0, 1}},
	}
	if err := idx.Rebuild(entries); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	if idx.Len() != 2 {
		t.Fatalf("expected duplicate ids to collapse, got %d entries", idx.Len())
	}
	matches, err := idx.Search([]float32{0, 0, 1}, 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if matches[0].ArticleID != "art-a" || matches[0].Score < 0.999999 {
		t.Fatalf("expected art-a to carry its last vector, got %+v", matches[0])
	}
}

func TestIndexRebuildIsAtomicUnderConcurrentSearches(t *testing.T) {
	idx := NewMemoryIndex()

	build := func(prefix string) []IndexEntry {
		entries := make([]IndexEntry, 10)
		for i := range entries {
			vector := make([]float32, 8)
			vector[i%8] = 1
			vector[(i+3)%8] = 0.5
			entries[i] = IndexEntry{ArticleID: fmt.Sprintf("%s-%d", prefix, i), Vector: vector}
		}
		return entries
	}
	oldGen := build("old")
	newGen := build("new")

	if err := idx.Rebuild(oldGen); err != nil {
		t.Fatalf("initial rebuild failed: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	defer wg.Wait()
	defer close(stop)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			gen := oldGen
			if i%2 == 1 {
				gen = newGen
			}
			if err := idx.Rebuild(gen); err != nil {
				t.Errorf("rebuild failed: %v", err)
				return
			}
		}
	}()

	query := make([]float32, 8)
	query[0] = 1

	for i := 0; i < 2000; i++ {
		matches, err := idx.Search(query, len(oldGen)+len(newGen))
		if err != nil {
			t.Fatalf("search %d failed: %v", i, err)
		}
		if len(matches) != len(oldGen) {
			t.Fatalf("search %d observed a partially populated index: %d entries", i, len(matches))
		}
		gen := strings.SplitN(matches[0].ArticleID, "-", 2)[0]
		for _, m := range matches {
			if !strings.HasPrefix(m.ArticleID, gen+"-") {
				t.Fatalf("search %d observed mixed generations: %s alongside %s-*", i, m.ArticleID, gen)
			}
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"parallel", []float32{1, 0, 0}, []float32{3, 0, 0}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite clamps to zero", []float32{1, 0}, []float32{-1, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"near duplicate", []float32{1, 0, 0}, []float32{0.99, 0.01, 0}, 0.99995},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CosineSimilarity(c.a, c.b)
			if math.Abs(got-c.want) > 1e-4 {
				t.Fatalf("CosineSimilarity(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
			}
			if got < 0 || got > 1 {
				t.Fatalf("score %v outside [0,1]", got)
			}
		})
	}
}
