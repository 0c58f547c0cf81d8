package feedwatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"healthbrief/types"
)

const (
	extractWorkers   = 5
	extractorTimeout = 30 * time.Second
)

// Classifier is the slice of the duplicate checker the watcher needs.
type Classifier interface {
	Classify(ctx context.Context, candidateText string) (*types.SimilarityResult, error)
}

// Item is one feed entry with extracted text and its coverage verdict.
type Item struct {
	ID               string    `json:"id"`
	FeedName         string    `json:"feed_name"`
	Title            string    `json:"title"`
	URL              string    `json:"url"`
	PublishedAt      time.Time `json:"published_at"`
	FetchedAt        time.Time `json:"fetched_at"`
	Summary          string    `json:"summary,omitempty"`
	FullText         string    `json:"full_text,omitempty"`
	ExtractionError  string    `json:"extraction_error,omitempty"`
	Covered          bool      `json:"covered"`
	MatchedArticleID string    `json:"matched_article_id,omitempty"`
	Score            float64   `json:"score"`
}

// Report summarizes one scan across all configured feeds. Failed counts
// items that produced no coverage verdict.
type Report struct {
	ScannedAt time.Time `json:"scanned_at"`
	Feeds     []string  `json:"feeds"`
	Items     []Item    `json:"items"`
	Novel     int       `json:"novel"`
	Covered   int       `json:"covered"`
	Failed    int       `json:"failed"`
	Errors    []string  `json:"errors,omitempty"`
}

// Watcher fetches configured feeds and classifies each entry against the
// published-article index. Reporting is advisory; nothing is stored.
type Watcher struct {
	feeds      []FeedConfig
	classifier Classifier
	parser     *gofeed.Parser
	maxItems   int
	extract    func(pageURL string) (string, error)
}

// NewWatcher builds a watcher over the given feeds.
func NewWatcher(feeds []FeedConfig, classifier Classifier) *Watcher {
	return &Watcher{
		feeds:      feeds,
		classifier: classifier,
		parser:     gofeed.NewParser(),
		maxItems:   DefaultCount,
		extract:    extractText,
	}
}

// Scan fetches every configured feed once, extracts full text with a bounded
// worker pool, and classifies each entry.
func (w *Watcher) Scan(ctx context.Context) (*Report, error) {
	report := &Report{ScannedAt: time.Now()}

	var items []Item
	for _, feed := range w.feeds {
		report.Feeds = append(report.Feeds, feed.Name)

		fetched, err := w.fetchFeed(ctx, feed)
		if err != nil {
			log.Printf("Failed to fetch feed %s: %v", feed.Name, err)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", feed.Name, err))
			continue
		}
		items = append(items, fetched...)
	}

	w.extractAll(ctx, items)
	for i := range items {
		w.classify(ctx, &items[i], report)
	}

	report.Items = items
	return report, nil
}

// fetchFeed retrieves and parses one RSS/Atom feed, returning item metadata.
func (w *Watcher) fetchFeed(ctx context.Context, feed FeedConfig) ([]Item, error) {
	parsed, err := w.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	count := min(len(parsed.Items), w.maxItems)
	items := make([]Item, 0, count)

	for i := 0; i < count; i++ {
		entry := parsed.Items[i]

		// Use GUID if available, otherwise generate from URL
		id := entry.GUID
		if id == "" && entry.Link != "" {
			id = generateID(entry.Link)
		}

		var publishedAt time.Time
		if entry.PublishedParsed != nil {
			publishedAt = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			publishedAt = *entry.UpdatedParsed
		}

		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}

		items = append(items, Item{
			ID:          id,
			FeedName:    feed.Name,
			Title:       entry.Title,
			URL:         entry.Link,
			PublishedAt: publishedAt,
			FetchedAt:   time.Now(),
			Summary:     summary,
		})
	}

	return items, nil
}

// extractAll fetches full text for every item using a bounded worker pool.
// Extraction failures are recorded on the item, never fatal.
func (w *Watcher) extractAll(ctx context.Context, items []Item) {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(extractWorkers)

	for i := range items {
		g.Go(func() error {
			item := &items[i]
			if item.URL == "" {
				item.ExtractionError = "item has no URL"
				return nil
			}
			text, err := w.extract(item.URL)
			if err != nil {
				item.ExtractionError = err.Error()
				log.Printf("Failed to extract %s: %v", item.URL, err)
				return nil
			}
			item.FullText = text
			log.Printf("✓ Extracted: %s", item.Title)
			return nil
		})
	}

	g.Wait()
}

func (w *Watcher) classify(ctx context.Context, item *Item, report *Report) {
	text := item.FullText
	if text == "" {
		text = item.Summary
	}
	if text == "" {
		report.Failed++
		return
	}

	result, err := w.classifier.Classify(ctx, item.Title+"\n\n"+text)
	if err != nil {
		log.Printf("Failed to classify %q: %v", item.Title, err)
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", item.Title, err))
		report.Failed++
		return
	}

	item.Score = result.Score
	if result.IsDuplicate() {
		item.Covered = true
		item.MatchedArticleID = result.MatchedArticleID
		report.Covered++
	} else {
		report.Novel++
	}
}

func extractText(pageURL string) (string, error) {
	article, err := readability.FromURL(pageURL, extractorTimeout)
	if err != nil {
		return "", fmt.Errorf("readability extraction failed: %w", err)
	}
	return article.TextContent, nil
}

// generateID creates a short, stable ID by hashing the item URL.
func generateID(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}
