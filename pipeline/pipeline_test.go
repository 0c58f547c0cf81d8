package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"healthbrief/dedup"
	"healthbrief/images"
	"healthbrief/llm"
	"healthbrief/storage"
	"healthbrief/store"
	"healthbrief/types"
)

const healthText = "People with diabetes and high blood pressure face serious health problems. " +
	"Hypertension is a chronic medical condition. Your doctor can prescribe medication " +
	"and adjust the dose when symptoms like chest pain appear. Take your medicines with " +
	"food. A healthy diet with less salt, regular exercise, and careful eating help you " +
	"manage weight. Schedule a checkup and follow your care plan."

const transitText = "The morning express train departs from the central station at seven and " +
	"arrives downtown forty minutes later. Commuters usually buy monthly passes at the " +
	"ticket office near the main entrance. On weekends the schedule changes and extra " +
	"carriages run between the harbor district and the airport terminal for travelers. " +
	"Cyclists may bring bicycles aboard during off peak hours only."

type fakeSummarizer struct {
	mu       sync.Mutex
	calls    int
	err      error
	pageText string
}

func (f *fakeSummarizer) ExtractPageText(ctx context.Context, pageNum int, pagePDF []byte) (string, error) {
	return f.pageText, nil
}

func (f *fakeSummarizer) GenerateArticle(ctx context.Context, chunkText string) (*llm.ArticleDraft, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ArticleDraft{
		Title:                "Manage Your Blood Pressure",
		ContentText:          "Eat less salt. Walk every day. Take your pills on time.",
		Summary:              "Simple steps to control blood pressure.",
		Category:             types.CategoryHypertension,
		MedicalConditionTags: []string{"hypertension"},
		ConfidenceScore:      0.9,
		ReadingLevelScore:    4.5,
	}, nil
}

type fakeClassifier struct {
	duplicateMarker string
	matchID         string
}

func (f *fakeClassifier) Classify(ctx context.Context, candidateText string) (*types.SimilarityResult, error) {
	if f.duplicateMarker != "" && strings.Contains(candidateText, f.duplicateMarker) {
		return &types.SimilarityResult{
			Classification:   types.ClassificationDuplicate,
			MatchedArticleID: f.matchID,
			Score:            0.91,
		}, nil
	}
	return &types.SimilarityResult{Classification: types.ClassificationUnique, Score: 0.41}, nil
}

type fakeMatcher struct{}

func (fakeMatcher) FindImage(ctx context.Context, title, category string, tags []string) (*images.Image, error) {
	return &images.Image{ID: "img-1", URL: "https://images.example.com/health.jpg", Author: "Test Photographer"}, nil
}

type fakeBloom struct {
	mu    sync.Mutex
	seen  map[string]bool
	added []string
}

func newFakeBloom(hashes ...string) *fakeBloom {
	b := &fakeBloom{seen: make(map[string]bool)}
	for _, h := range hashes {
		b.seen[h] = true
	}
	return b
}

func (b *fakeBloom) Exists(ctx context.Context, hash string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seen[hash], nil
}

func (b *fakeBloom) Add(ctx context.Context, hash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seen[hash] = true
	b.added = append(b.added, hash)
	return nil
}

type fakeArticleRepo struct {
	mu       sync.Mutex
	articles []types.HealthArticle
}

var _ store.ArticleRepository = (*fakeArticleRepo)(nil)

func (f *fakeArticleRepo) Create(ctx context.Context, article *types.HealthArticle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	article.ID = fmt.Sprintf("art-%d", len(f.articles)+1)
	f.articles = append(f.articles, *article)
	return nil
}

func (f *fakeArticleRepo) GetByID(ctx context.Context, id string) (*types.HealthArticle, error) {
	return nil, store.ErrNotFound
}

func (f *fakeArticleRepo) List(ctx context.Context, params store.ArticleListParams) ([]types.HealthArticle, int64, error) {
	return nil, 0, nil
}

func (f *fakeArticleRepo) Update(ctx context.Context, article *types.HealthArticle) error {
	return nil
}

func (f *fakeArticleRepo) Delete(ctx context.Context, id string) error { return nil }

func (f *fakeArticleRepo) ListPublished(ctx context.Context) ([]types.HealthArticle, error) {
	return nil, nil
}

func (f *fakeArticleRepo) ListFlaggedDuplicates(ctx context.Context) ([]types.HealthArticle, error) {
	return nil, nil
}

func (f *fakeArticleRepo) CountByStatus(ctx context.Context) (map[types.ArticleStatus]int64, error) {
	return nil, nil
}

type fakePDFRepo struct {
	docs       map[string]types.PDFDocument
	pageCount  int
	processing bool
	completed  *types.ProcessingStats
	failedMsg  string
}

var _ store.PDFRepository = (*fakePDFRepo)(nil)

func newFakePDFRepo(docs ...types.PDFDocument) *fakePDFRepo {
	repo := &fakePDFRepo{docs: make(map[string]types.PDFDocument)}
	for _, d := range docs {
		repo.docs[d.ID] = d
	}
	return repo
}

func (f *fakePDFRepo) Create(ctx context.Context, doc *types.PDFDocument) error {
	f.docs[doc.ID] = *doc
	return nil
}

func (f *fakePDFRepo) GetByID(ctx context.Context, id string) (*types.PDFDocument, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &doc, nil
}

func (f *fakePDFRepo) List(ctx context.Context, page, limit int) ([]types.PDFDocument, int64, error) {
	return nil, 0, nil
}

func (f *fakePDFRepo) SetPageCount(ctx context.Context, id string, pages int) error {
	f.pageCount = pages
	return nil
}

func (f *fakePDFRepo) MarkProcessing(ctx context.Context, id string) error {
	f.processing = true
	return nil
}

func (f *fakePDFRepo) MarkCompleted(ctx context.Context, id string, stats types.ProcessingStats) error {
	f.completed = &stats
	return nil
}

func (f *fakePDFRepo) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	f.failedMsg = errorMessage
	return nil
}

func (f *fakePDFRepo) Delete(ctx context.Context, id string) error {
	delete(f.docs, id)
	return nil
}

func newTestProcessor(t *testing.T, deps Deps) *Processor {
	t.Helper()
	if deps.PDFs == nil {
		deps.PDFs = newFakePDFRepo()
	}
	if deps.Articles == nil {
		deps.Articles = &fakeArticleRepo{}
	}
	if deps.Blobs == nil {
		blobs, err := storage.NewLocalStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewLocalStore failed: %v", err)
		}
		deps.Blobs = blobs
	}
	if deps.LLM == nil {
		deps.LLM = &fakeSummarizer{}
	}
	p, err := NewProcessor(deps)
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}
	return p
}

func TestNewProcessorRequiresCoreDeps(t *testing.T) {
	if _, err := NewProcessor(Deps{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestProcessPagesCreatesArticles(t *testing.T) {
	repo := &fakeArticleRepo{}
	bloom := newFakeBloom()
	p := newTestProcessor(t, Deps{
		Articles:   repo,
		Images:     fakeMatcher{},
		Classifier: &fakeClassifier{},
		Bloom:      bloom,
	})

	stats, err := p.processPages(context.Background(), "pdf-1", []string{healthText, transitText})
	if err != nil {
		t.Fatalf("processPages failed: %v", err)
	}

	if stats.ChunksTotal != 2 || stats.ChunksRelevant != 1 {
		t.Errorf("chunks total/relevant = %d/%d; want 2/1", stats.ChunksTotal, stats.ChunksRelevant)
	}
	if stats.ArticlesCreated != 1 || stats.DuplicatesFlagged != 0 {
		t.Errorf("created/flagged = %d/%d; want 1/0", stats.ArticlesCreated, stats.DuplicatesFlagged)
	}

	if len(repo.articles) != 1 {
		t.Fatalf("stored articles = %d; want 1", len(repo.articles))
	}
	article := repo.articles[0]
	if article.Status != types.StatusDraft {
		t.Errorf("status = %s; want draft", article.Status)
	}
	if article.SourcePDFID != "pdf-1" {
		t.Errorf("source pdf = %q", article.SourcePDFID)
	}
	if article.ImageURL != "https://images.example.com/health.jpg" {
		t.Errorf("image url = %q", article.ImageURL)
	}
	if article.SimilarityScore != 0.41 || article.SimilarToID != "" {
		t.Errorf("similarity = %v/%q; want advisory 0.41 with no match", article.SimilarityScore, article.SimilarToID)
	}

	wantHash := dedup.NormalizeAndHash(article.Title, article.ContentText)
	if len(bloom.added) != 1 || bloom.added[0] != wantHash {
		t.Errorf("bloom added = %v; want [%s]", bloom.added, wantHash)
	}
}

func TestProcessPagesFlagsAdvisoryDuplicate(t *testing.T) {
	repo := &fakeArticleRepo{}
	p := newTestProcessor(t, Deps{
		Articles:   repo,
		Classifier: &fakeClassifier{duplicateMarker: "Blood Pressure", matchID: "art-77"},
	})

	stats, err := p.processPages(context.Background(), "pdf-2", []string{healthText})
	if err != nil {
		t.Fatalf("processPages failed: %v", err)
	}

	// Advisory means flagged but still stored.
	if stats.ArticlesCreated != 1 || stats.DuplicatesFlagged != 1 {
		t.Errorf("created/flagged = %d/%d; want 1/1", stats.ArticlesCreated, stats.DuplicatesFlagged)
	}
	if len(repo.articles) != 1 {
		t.Fatalf("stored articles = %d; want 1", len(repo.articles))
	}
	article := repo.articles[0]
	if article.SimilarToID != "art-77" || article.SimilarityScore != 0.91 {
		t.Errorf("flag = %q/%v; want art-77/0.91", article.SimilarToID, article.SimilarityScore)
	}
}

func TestProcessPagesSkipsExactDuplicate(t *testing.T) {
	draft, _ := (&fakeSummarizer{}).GenerateArticle(context.Background(), "")
	bloom := newFakeBloom(dedup.NormalizeAndHash(draft.Title, draft.ContentText))

	repo := &fakeArticleRepo{}
	p := newTestProcessor(t, Deps{Articles: repo, Bloom: bloom})

	stats, err := p.processPages(context.Background(), "pdf-3", []string{healthText})
	if err != nil {
		t.Fatalf("processPages failed: %v", err)
	}
	if stats.ArticlesCreated != 0 {
		t.Errorf("created = %d; want 0 for exact duplicate", stats.ArticlesCreated)
	}
	if len(repo.articles) != 0 {
		t.Errorf("stored articles = %d; want 0", len(repo.articles))
	}
	if len(bloom.added) != 0 {
		t.Errorf("bloom re-added a known hash: %v", bloom.added)
	}
}

func TestProcessPagesSummarizerFailureSkipsChunk(t *testing.T) {
	repo := &fakeArticleRepo{}
	p := newTestProcessor(t, Deps{
		Articles: repo,
		LLM:      &fakeSummarizer{err: errors.New("model unavailable")},
	})

	stats, err := p.processPages(context.Background(), "pdf-4", []string{healthText})
	if err != nil {
		t.Fatalf("processPages failed: %v", err)
	}
	if stats.ChunksRelevant != 1 || stats.ArticlesCreated != 0 {
		t.Errorf("relevant/created = %d/%d; want 1/0", stats.ChunksRelevant, stats.ArticlesCreated)
	}
}

func TestProcessPagesNoRelevantChunks(t *testing.T) {
	summarizer := &fakeSummarizer{}
	p := newTestProcessor(t, Deps{LLM: summarizer})

	stats, err := p.processPages(context.Background(), "pdf-5", []string{transitText})
	if err != nil {
		t.Fatalf("processPages failed: %v", err)
	}
	if stats.ChunksTotal != 1 || stats.ChunksRelevant != 0 || stats.ArticlesCreated != 0 {
		t.Errorf("stats = %+v; want one irrelevant chunk and nothing created", stats)
	}
	if summarizer.calls != 0 {
		t.Errorf("summarizer ran %d times for irrelevant content", summarizer.calls)
	}
}

func TestProcessPDFFailsOnInvalidPDF(t *testing.T) {
	blobs, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	if err := blobs.Save(context.Background(), "pdfs/bad.pdf",
		bytes.NewReader([]byte("this is not a PDF")), "application/pdf"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	repo := newFakePDFRepo(types.PDFDocument{ID: "pdf-9", StorageKey: "pdfs/bad.pdf"})
	p := newTestProcessor(t, Deps{PDFs: repo, Blobs: blobs})

	if err := p.ProcessPDF(context.Background(), "pdf-9"); err == nil {
		t.Fatal("expected error for invalid PDF")
	}
	if !repo.processing {
		t.Error("job was never marked processing")
	}
	if !strings.Contains(repo.failedMsg, "invalid pdf") {
		t.Errorf("failure message = %q", repo.failedMsg)
	}
	if repo.completed != nil {
		t.Error("failed job was marked completed")
	}
}

func TestProcessPDFUnknownID(t *testing.T) {
	p := newTestProcessor(t, Deps{})
	err := p.ProcessPDF(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v; want ErrNotFound", err)
	}
}

// TestProcessPDFSample runs the full pipeline against real PDFs dropped in
// testdata, with the LLM faked out.
func TestProcessPDFSample(t *testing.T) {
	samples, err := filepath.Glob("testdata/*.pdf")
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(samples) == 0 {
		t.Skip("no sample PDFs in testdata")
	}

	data, err := os.ReadFile(samples[0])
	if err != nil {
		t.Fatalf("read sample failed: %v", err)
	}

	blobs, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	if err := blobs.Save(context.Background(), "pdfs/sample.pdf",
		bytes.NewReader(data), "application/pdf"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	pdfs := newFakePDFRepo(types.PDFDocument{ID: "pdf-sample", StorageKey: "pdfs/sample.pdf"})
	articles := &fakeArticleRepo{}
	p := newTestProcessor(t, Deps{
		PDFs:     pdfs,
		Articles: articles,
		Blobs:    blobs,
		LLM:      &fakeSummarizer{pageText: healthText},
	})

	if err := p.ProcessPDF(context.Background(), "pdf-sample"); err != nil {
		t.Fatalf("ProcessPDF failed: %v", err)
	}
	if pdfs.pageCount < 1 {
		t.Errorf("page count = %d; want at least 1", pdfs.pageCount)
	}
	if pdfs.completed == nil {
		t.Fatal("job was not marked completed")
	}
	if pdfs.completed.ArticlesCreated != len(articles.articles) {
		t.Errorf("stats created = %d, stored = %d", pdfs.completed.ArticlesCreated, len(articles.articles))
	}
}
