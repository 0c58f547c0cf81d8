// Package pipeline turns uploaded PDFs into draft articles: split pages,
// extract text, chunk and score, summarize relevant chunks, and persist the
// drafts with their advisory duplicate verdicts.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"healthbrief/chunker"
	"healthbrief/config"
	"healthbrief/dedup"
	"healthbrief/images"
	"healthbrief/llm"
	"healthbrief/pdf"
	"healthbrief/storage"
	"healthbrief/store"
	"healthbrief/types"
)

// Summarizer is the LLM surface the pipeline needs.
type Summarizer interface {
	ExtractPageText(ctx context.Context, pageNum int, pagePDF []byte) (string, error)
	GenerateArticle(ctx context.Context, chunkText string) (*llm.ArticleDraft, error)
}

// Classifier is the advisory near-duplicate checker.
type Classifier interface {
	Classify(ctx context.Context, candidateText string) (*types.SimilarityResult, error)
}

// ImageMatcher finds a stock photo for an article.
type ImageMatcher interface {
	FindImage(ctx context.Context, title, category string, tags []string) (*images.Image, error)
}

// Bloom is the exact-duplicate prefilter over content hashes.
type Bloom interface {
	Exists(ctx context.Context, hash string) (bool, error)
	Add(ctx context.Context, hash string) error
}

// Deps wires the processor's collaborators. Images, Classifier, and Bloom
// are optional; leaving one nil disables that step.
type Deps struct {
	PDFs       store.PDFRepository
	Articles   store.ArticleRepository
	Blobs      storage.BlobStore
	LLM        Summarizer
	Chunker    *chunker.Chunker
	Images     ImageMatcher
	Classifier Classifier
	Bloom      Bloom
}

// Processor runs the ingestion pipeline for one PDF at a time.
type Processor struct {
	pdfs       store.PDFRepository
	articles   store.ArticleRepository
	blobs      storage.BlobStore
	llm        Summarizer
	chunker    *chunker.Chunker
	images     ImageMatcher
	classifier Classifier
	bloom      Bloom
}

// NewProcessor validates required dependencies and builds a processor.
func NewProcessor(deps Deps) (*Processor, error) {
	if deps.PDFs == nil || deps.Articles == nil || deps.Blobs == nil || deps.LLM == nil {
		return nil, fmt.Errorf("pipeline: pdf store, article store, blob store, and llm client are required")
	}
	chunkerImpl := deps.Chunker
	if chunkerImpl == nil {
		chunkerImpl = chunker.New(config.DefaultChunkSizeWords)
	}
	return &Processor{
		pdfs:       deps.PDFs,
		articles:   deps.Articles,
		blobs:      deps.Blobs,
		llm:        deps.LLM,
		chunker:    chunkerImpl,
		images:     deps.Images,
		classifier: deps.Classifier,
		bloom:      deps.Bloom,
	}, nil
}

// ProcessPDF runs the full pipeline for one uploaded PDF. The job row tracks
// progress: processing while the run is live, then completed with stats or
// failed with the error message.
func (p *Processor) ProcessPDF(ctx context.Context, pdfID string) error {
	log.Printf("Starting processing for PDF %s", pdfID)

	doc, err := p.pdfs.GetByID(ctx, pdfID)
	if err != nil {
		return fmt.Errorf("failed to load pdf %s: %w", pdfID, err)
	}

	if err := p.pdfs.MarkProcessing(ctx, pdfID); err != nil {
		return fmt.Errorf("failed to mark pdf %s processing: %w", pdfID, err)
	}

	stats, err := p.run(ctx, doc)
	if err != nil {
		log.Printf("❌ Processing failed for PDF %s: %v", pdfID, err)
		if markErr := p.pdfs.MarkFailed(ctx, pdfID, err.Error()); markErr != nil {
			log.Printf("Failed to record failure for PDF %s: %v", pdfID, markErr)
		}
		return err
	}

	if err := p.pdfs.MarkCompleted(ctx, pdfID, *stats); err != nil {
		return fmt.Errorf("failed to mark pdf %s completed: %w", pdfID, err)
	}
	log.Printf("✅ PDF %s processed: %d articles from %d relevant chunks",
		pdfID, stats.ArticlesCreated, stats.ChunksRelevant)
	return nil
}

func (p *Processor) run(ctx context.Context, doc *types.PDFDocument) (*types.ProcessingStats, error) {
	body, err := p.blobs.Open(ctx, doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to open stored pdf: %w", err)
	}
	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read stored pdf: %w", err)
	}

	pages, err := pdf.Split(data)
	if err != nil {
		return nil, err
	}
	if err := p.pdfs.SetPageCount(ctx, doc.ID, len(pages)); err != nil {
		return nil, err
	}
	log.Printf("PDF %s has %d pages", doc.ID, len(pages))

	pageTexts := make([]string, len(pages))
	for i, page := range pages {
		text, err := p.llm.ExtractPageText(ctx, i+1, page)
		if err != nil {
			return nil, err
		}
		pageTexts[i] = text
	}

	return p.processPages(ctx, doc.ID, pageTexts)
}

// processPages chunks extracted page text and summarizes the relevant
// chunks into draft articles.
func (p *Processor) processPages(ctx context.Context, pdfID string, pageTexts []string) (*types.ProcessingStats, error) {
	stats := &types.ProcessingStats{}

	chunks := p.chunker.ChunkPages(pageTexts)
	stats.ChunksTotal = len(chunks)

	relevant := make([]chunker.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Relevant {
			relevant = append(relevant, c)
		}
	}
	stats.ChunksRelevant = len(relevant)
	if len(relevant) == 0 {
		log.Printf("No relevant chunks found for PDF %s", pdfID)
		return stats, nil
	}

	// Summarize in parallel. Per-chunk failures skip the chunk; only
	// cancellation aborts the run.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.MaxConcurrentChunks)

	var mu sync.Mutex
	for _, chunk := range relevant {
		g.Go(func() error {
			article, err := p.buildArticle(gctx, pdfID, chunk)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("Skipping chunk %d of PDF %s: %v", chunk.Index, pdfID, err)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			stats.ArticlesCreated++
			if article.SimilarToID != "" {
				stats.DuplicatesFlagged++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return stats, nil
}

// buildArticle summarizes one chunk and persists the draft.
func (p *Processor) buildArticle(ctx context.Context, pdfID string, chunk chunker.Chunk) (*types.HealthArticle, error) {
	draft, err := p.llm.GenerateArticle(ctx, chunk.Content)
	if err != nil {
		return nil, fmt.Errorf("summarize failed: %w", err)
	}

	article := &types.HealthArticle{
		Title:                draft.Title,
		ContentText:          draft.ContentText,
		Summary:              draft.Summary,
		Category:             draft.Category,
		MedicalConditionTags: draft.MedicalConditionTags,
		Status:               types.StatusDraft,
		SourcePDFID:          pdfID,
		ChunkIndex:           chunk.Index,
		ReadingLevelScore:    draft.ReadingLevelScore,
	}

	// A bloom hit means this exact content was already generated once;
	// skip it instead of minting another identical draft.
	if p.bloom != nil {
		hash := dedup.NormalizeAndHash(article.Title, article.ContentText)
		seen, err := p.bloom.Exists(ctx, hash)
		switch {
		case err != nil:
			log.Printf("Bloom check failed for %q: %v", article.Title, err)
		case seen:
			return nil, fmt.Errorf("exact duplicate of previously generated content")
		default:
			if err := p.bloom.Add(ctx, hash); err != nil {
				log.Printf("Bloom add failed for %q: %v", article.Title, err)
			}
		}
	}

	// Advisory near-duplicate check; the draft is stored either way.
	if p.classifier != nil {
		result, err := p.classifier.Classify(ctx, article.EmbeddingText())
		if err != nil {
			log.Printf("Similarity check failed for %q: %v", article.Title, err)
		} else {
			article.SimilarityScore = result.Score
			if result.IsDuplicate() {
				article.SimilarToID = result.MatchedArticleID
				log.Printf("Flagged near-duplicate %q (%.2f vs %s)",
					article.Title, result.Score, result.MatchedArticleID)
			}
		}
	}

	if p.images != nil {
		img, err := p.images.FindImage(ctx, article.Title, article.Category, article.MedicalConditionTags)
		if err != nil {
			log.Printf("Image search failed for %q: %v", article.Title, err)
		} else if img != nil {
			article.ImageURL = img.URL
			log.Printf("Matched image for %q (%s)", article.Title, images.AttributionText(img))
		}
	}

	if err := p.articles.Create(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to store article: %w", err)
	}
	log.Printf("Created article %q (%s)", article.Title, article.ID)
	return article, nil
}
